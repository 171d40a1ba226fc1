package interfaces

import "github.com/ternarybob/adsum/internal/models"

// SessionStore persists authenticated-session state keyed by the profile's
// configured path. It exclusively owns the on-disk blobs; the Authenticator
// never touches the files directly.
type SessionStore interface {
	// Load returns the stored session state, or (nil, nil) when none exists
	Load(path string) (*models.AuthSessionState, error)

	// Save writes the session state whole, replacing any stale state. The
	// write is all-or-nothing; callers invoke it only after a confirmed
	// authenticated liveness check.
	Save(path string, state *models.AuthSessionState) error

	// Discard removes an invalidated session so it cannot be silently reused
	Discard(path string) error
}
