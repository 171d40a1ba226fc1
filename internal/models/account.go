package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlaceholderAccount marks an account excluded from the run because its
// identity or credential looks like an unfilled configuration template. This
// is a designed exclusion, not a failure.
var ErrPlaceholderAccount = errors.New("account looks like a configuration placeholder")

// placeholderMarkers are substrings that indicate template-looking credentials.
// Carried over from the reference configuration templates (both latin and CJK
// placeholder words appear in shipped example configs).
var placeholderMarkers = []string{
	"username", "password", "your_", "example", "test", "xxx", "user", "pass",
	"账号", "密码", "用户名", "你的",
}

// AccountConfig describes one account to check in. Site carries account-level
// overrides that are merged over the global default profile during resolution.
type AccountConfig struct {
	Identity         string       `toml:"identity" json:"identity"`
	CredentialSecret string       `toml:"credential_secret" json:"credential_secret"`
	Proxy            string       `toml:"proxy" json:"proxy"`
	Site             *SiteProfile `toml:"site" json:"site,omitempty"`
}

// ResolvedAccount is an AccountConfig with its effective site profile and
// proxy fixed for the run.
type ResolvedAccount struct {
	Identity         string
	CredentialSecret string
	Proxy            string
	Site             SiteProfile
}

// IsPlaceholder reports whether a value is empty or matches a known
// placeholder pattern (generic labels, bracketed template hints).
func IsPlaceholder(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Resolve produces a fully resolved account or rejects it. Rejection excludes
// the account from the run without aborting the batch.
func (a *AccountConfig) Resolve(defaults SiteProfile, defaultProxy string) (*ResolvedAccount, error) {
	if IsPlaceholder(a.Identity) {
		return nil, fmt.Errorf("identity %q: %w", a.Identity, ErrPlaceholderAccount)
	}

	site, err := defaults.Merged(a.Site)
	if err != nil {
		return nil, err
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}

	if site.AuthMode == AuthModeCredential && IsPlaceholder(a.CredentialSecret) {
		return nil, fmt.Errorf("credential for %q: %w", a.Identity, ErrPlaceholderAccount)
	}

	proxy := a.Proxy
	if proxy == "" {
		proxy = defaultProxy
	}

	return &ResolvedAccount{
		Identity:         a.Identity,
		CredentialSecret: a.CredentialSecret,
		Proxy:            proxy,
		Site:             site,
	}, nil
}
