package models

import (
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

// AuthMode selects the authentication state machine used for a site
type AuthMode string

const (
	// AuthModeCredential authenticates with a site-local username/password form
	AuthModeCredential AuthMode = "credential"
	// AuthModeDelegated authenticates through a third-party identity provider
	AuthModeDelegated AuthMode = "delegated"
)

// SiteProfile is the declarative description of one site's endpoints, selectors
// and auth mode. Profiles are resolved once per run (account overrides merged
// over the global default) and are immutable afterwards.
type SiteProfile struct {
	Name           string `toml:"name" json:"name" validate:"required"`
	BaseURL        string `toml:"base_url" json:"base_url" validate:"required,url"`
	LoginPath      string `toml:"login_path" json:"login_path"`
	ConsolePath    string `toml:"console_path" json:"console_path"`
	CheckinAPIPath string `toml:"checkin_api_path" json:"checkin_api_path" validate:"required"`
	UserAPIPath    string `toml:"user_api_path" json:"user_api_path" validate:"required"`
	TokensAPIPath  string `toml:"tokens_api_path" json:"tokens_api_path"`
	AuthMode       AuthMode `toml:"auth_mode" json:"auth_mode" validate:"required,oneof=credential delegated"`

	// Form selectors for credential mode. Treated as opaque configuration
	// values; the Authenticator logic is identical across all profiles.
	UsernameSelector string `toml:"username_selector" json:"username_selector"`
	PasswordSelector string `toml:"password_selector" json:"password_selector"`
	SubmitSelector   string `toml:"submit_selector" json:"submit_selector"`

	// Delegated mode only. Entry paths are attempted in declared order because
	// different builds of third-party sites expose the login entry at
	// different routes.
	DelegatedEntryPaths  []string      `toml:"delegated_entry_paths" json:"delegated_entry_paths"`
	DelegatedButtonLabel string        `toml:"delegated_button_label" json:"delegated_button_label"`
	ManualAuthTimeout    time.Duration `toml:"manual_auth_timeout" json:"manual_auth_timeout"`
	SessionStatePath     string        `toml:"session_state_path" json:"session_state_path"`
}

// DefaultSiteProfile returns the built-in profile matching the reference
// deployment. User configuration overrides these field by field.
func DefaultSiteProfile() SiteProfile {
	return SiteProfile{
		Name:             "anyrouter",
		BaseURL:          "https://anyrouter.top",
		LoginPath:        "/login",
		ConsolePath:      "/console",
		CheckinAPIPath:   "/api/user/sign_in",
		UserAPIPath:      "/api/user/self",
		TokensAPIPath:    "/api/token/",
		AuthMode:         AuthModeCredential,
		UsernameSelector: `input[name="username"]`,
		PasswordSelector: `input[name="password"]`,
		SubmitSelector:   `button[type="submit"]`,
	}
}

// Merged returns a copy of the base profile with non-zero override fields
// applied on top. Absence at the override level means "inherit", never "unset".
func (p SiteProfile) Merged(override *SiteProfile) (SiteProfile, error) {
	if override == nil {
		return p, nil
	}
	merged := p
	if err := mergo.Merge(&merged, *override, mergo.WithOverride); err != nil {
		return p, fmt.Errorf("failed to merge site profile: %w", err)
	}
	return merged, nil
}

// Validate checks that a resolved profile is complete enough to execute.
func (p *SiteProfile) Validate() error {
	v := validator.New()
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid site profile %q: %w", p.Name, err)
	}
	if p.AuthMode == AuthModeCredential {
		if p.LoginPath == "" {
			return fmt.Errorf("invalid site profile %q: login_path is required for credential mode", p.Name)
		}
		if p.UsernameSelector == "" || p.PasswordSelector == "" || p.SubmitSelector == "" {
			return fmt.Errorf("invalid site profile %q: credential mode requires form selectors", p.Name)
		}
	}
	if p.AuthMode == AuthModeDelegated {
		if len(p.DelegatedEntryPaths) == 0 {
			return fmt.Errorf("invalid site profile %q: delegated mode requires at least one entry path", p.Name)
		}
		if p.DelegatedButtonLabel == "" {
			return fmt.Errorf("invalid site profile %q: delegated mode requires a button label", p.Name)
		}
		if p.SessionStatePath == "" {
			return fmt.Errorf("invalid site profile %q: delegated mode requires session_state_path", p.Name)
		}
	}
	return nil
}

// URL joins a site-relative path onto the profile base URL.
func (p *SiteProfile) URL(path string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
