package interfaces

import (
	"context"

	"github.com/ternarybob/adsum/internal/models"
)

// AuthState is the observable state of the per-account authentication machine.
type AuthState string

const (
	AuthStateIdle           AuthState = "idle"
	AuthStateAuthenticating AuthState = "authenticating"
	AuthStateAuthenticated  AuthState = "authenticated"
	AuthStateFailed         AuthState = "auth_failed"
)

// Authenticator drives an automation engine to an authenticated context for
// one account. Entered once per account per run.
type Authenticator interface {
	Authenticate(ctx context.Context, engine AutomationEngine, account *models.ResolvedAccount) (AuthState, error)
}

// CheckinExecutor performs the check-in action against an authenticated
// context and retrieves account, quota and token data.
type CheckinExecutor interface {
	Execute(ctx context.Context, engine AutomationEngine, account *models.ResolvedAccount) (*models.CheckinResult, error)
}

// EngineFactory builds one automation engine per account pipeline. Contexts
// are never shared across accounts within a run.
type EngineFactory func(opts EngineOptions) (AutomationEngine, error)

// EngineOptions carries the per-account browser settings.
type EngineOptions struct {
	Headless      bool
	Proxy         string
	ScreenshotDir string
}
