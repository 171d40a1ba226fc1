package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/interfaces"
	"github.com/ternarybob/adsum/internal/models"
)

var (
	// ErrAuthenticationFailed means the login flow completed without reaching
	// an authenticated context.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrManualAuthRequired means a delegated account has no live session and
	// the browser is headless, so nobody can complete the provider flow.
	ErrManualAuthRequired = errors.New("manual authentication required, run without headless mode to prepare a session")

	// ErrManualAuthTimeout means the delegated provider flow was started but
	// no authenticated context appeared within the manual completion window.
	ErrManualAuthTimeout = errors.New("manual authentication not completed in time")

	// ErrDelegatedEntryNotFound means none of the configured entry paths
	// exposed the provider login button.
	ErrDelegatedEntryNotFound = errors.New("delegated login entry not found on any configured path")
)

const (
	defaultCredentialWait = 30 * time.Second
	defaultManualWait     = 2 * time.Minute
	entryProbeTimeout     = 10 * time.Second
)

// Service drives an automation engine to an authenticated context for one
// account, selecting the flow by the profile's auth mode.
type Service struct {
	sessions interfaces.SessionStore
	headless bool
	logger   arbor.ILogger
	now      func() time.Time
}

func NewService(sessions interfaces.SessionStore, headless bool, logger arbor.ILogger) *Service {
	return &Service{
		sessions: sessions,
		headless: headless,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate runs the authentication machine for one account. The returned
// state is AuthStateAuthenticated on success and AuthStateFailed otherwise;
// a failed account never aborts the surrounding batch.
func (s *Service) Authenticate(ctx context.Context, engine interfaces.AutomationEngine, account *models.ResolvedAccount) (interfaces.AuthState, error) {
	log := s.logger
	log.Info().
		Str("account", account.Identity).
		Str("auth_mode", string(account.Site.AuthMode)).
		Msg("Starting authentication")

	var err error
	switch account.Site.AuthMode {
	case models.AuthModeCredential:
		err = s.credentialFlow(ctx, engine, account)
	case models.AuthModeDelegated:
		err = s.delegatedFlow(ctx, engine, account)
	default:
		err = fmt.Errorf("unsupported auth mode %q", account.Site.AuthMode)
	}

	if err != nil {
		log.Warn().Err(err).Str("account", account.Identity).Msg("Authentication failed")
		return interfaces.AuthStateFailed, err
	}

	log.Info().Str("account", account.Identity).Msg("Authentication complete")
	return interfaces.AuthStateAuthenticated, nil
}

// credentialFlow submits the site-local login form and waits for the session
// to become live.
func (s *Service) credentialFlow(ctx context.Context, engine interfaces.AutomationEngine, account *models.ResolvedAccount) error {
	site := account.Site

	if err := engine.Navigate(ctx, site.URL(site.LoginPath)); err != nil {
		return err
	}
	if err := engine.Fill(ctx, site.UsernameSelector, account.Identity); err != nil {
		return err
	}
	if err := engine.Fill(ctx, site.PasswordSelector, account.CredentialSecret); err != nil {
		return err
	}
	if err := engine.Click(ctx, site.SubmitSelector); err != nil {
		return err
	}

	if err := engine.WaitFor(ctx, s.liveness(engine, &site), defaultCredentialWait); err != nil {
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, err)
	}
	return nil
}

// delegatedFlow restores a persisted session when one is live, otherwise walks
// the interactive provider flow and persists the resulting session.
func (s *Service) delegatedFlow(ctx context.Context, engine interfaces.AutomationEngine, account *models.ResolvedAccount) error {
	site := account.Site
	log := s.logger

	restored, err := s.tryRestoreSession(ctx, engine, account)
	if err != nil {
		return err
	}
	if restored {
		return nil
	}

	// The interactive provider flow needs a human at a visible browser
	if s.headless {
		return ErrManualAuthRequired
	}

	if err := s.openProviderLogin(ctx, engine, account); err != nil {
		return err
	}

	timeout := site.ManualAuthTimeout
	if timeout <= 0 {
		timeout = defaultManualWait
	}
	log.Info().
		Str("account", account.Identity).
		Dur("timeout", timeout).
		Msg("Waiting for provider authentication to complete")

	if err := engine.WaitFor(ctx, s.liveness(engine, &site), timeout); err != nil {
		return fmt.Errorf("%w: %s", ErrManualAuthTimeout, err)
	}

	// Persist only after the session is confirmed live. A persist failure is
	// logged but does not fail an otherwise authenticated account.
	blob, err := engine.SessionState(ctx)
	if err != nil {
		log.Warn().Err(err).Str("account", account.Identity).Msg("Failed to capture session state")
		return nil
	}
	state := &models.AuthSessionState{Blob: blob, CapturedAt: s.now()}
	if err := s.sessions.Save(site.SessionStatePath, state); err != nil {
		log.Warn().Err(err).Str("account", account.Identity).Msg("Failed to persist session state")
	}
	return nil
}

// tryRestoreSession loads a persisted session and verifies it against the
// live site. A dead session is discarded so it cannot be reused.
func (s *Service) tryRestoreSession(ctx context.Context, engine interfaces.AutomationEngine, account *models.ResolvedAccount) (bool, error) {
	site := account.Site
	log := s.logger

	state, err := s.sessions.Load(site.SessionStatePath)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}

	if err := engine.LoadSessionState(ctx, state.Blob); err != nil {
		log.Warn().Err(err).Str("account", account.Identity).Msg("Persisted session could not be loaded")
		return false, s.sessions.Discard(site.SessionStatePath)
	}
	if err := engine.Navigate(ctx, site.URL(site.ConsolePath)); err != nil {
		return false, err
	}

	live, err := s.liveness(engine, &site)(ctx)
	if err != nil || !live {
		log.Info().
			Str("account", account.Identity).
			Str("captured_at", state.CapturedAt.Format("2006-01-02 15:04:05")).
			Msg("Persisted session is no longer live, discarding")
		return false, s.sessions.Discard(site.SessionStatePath)
	}

	log.Info().Str("account", account.Identity).Msg("Persisted session restored")
	return true, nil
}

// openProviderLogin walks the configured entry paths in order and clicks the
// provider login button on the first page that exposes it.
func (s *Service) openProviderLogin(ctx context.Context, engine interfaces.AutomationEngine, account *models.ResolvedAccount) error {
	site := account.Site
	log := s.logger
	selector := providerButtonSelector(site.DelegatedButtonLabel)

	for _, entry := range site.DelegatedEntryPaths {
		if err := engine.Navigate(ctx, site.URL(entry)); err != nil {
			log.Debug().Err(err).Str("entry_path", entry).Msg("Entry path unreachable")
			continue
		}
		if err := engine.WaitVisible(ctx, selector, entryProbeTimeout); err != nil {
			log.Debug().Str("entry_path", entry).Msg("Provider button not found on entry path")
			continue
		}
		if err := engine.Click(ctx, selector); err != nil {
			return err
		}
		log.Info().Str("entry_path", entry).Msg("Provider login opened")
		return nil
	}
	return ErrDelegatedEntryNotFound
}

// providerButtonSelector builds an XPath matching a button or link carrying
// the configured label text.
func providerButtonSelector(label string) string {
	return fmt.Sprintf(`//button[contains(., %q)] | //a[contains(., %q)]`, label, label)
}

// liveness returns a condition that reports whether the current browser
// context is authenticated, probed through the user API.
func (s *Service) liveness(engine interfaces.AutomationEngine, site *models.SiteProfile) interfaces.Condition {
	return func(ctx context.Context) (bool, error) {
		resp, err := engine.CallAPI(ctx, site.UserAPIPath, "GET", nil)
		if err != nil {
			// Transient transport errors keep the poll alive
			return false, nil
		}
		if resp.StatusCode != 200 {
			return false, nil
		}
		envelope, err := models.DecodeEnvelope(resp.Body)
		if err != nil {
			return false, nil
		}
		return envelope.Success, nil
	}
}
