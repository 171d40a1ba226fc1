package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/interfaces"
	"github.com/ternarybob/adsum/internal/models"
)

// Store is a file-backed SessionStore. One opaque blob per account at its
// configured path, written atomically and readable only by the owner.
type Store struct {
	baseDir string
	logger  arbor.ILogger
}

// NewStore creates a session store rooted at baseDir. Relative session paths
// resolve against it; absolute paths are used as-is.
func NewStore(baseDir string, logger arbor.ILogger) (interfaces.SessionStore, error) {
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	return &Store{
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// Load returns the stored session state, or (nil, nil) when none exists.
func (s *Store) Load(path string) (*models.AuthSessionState, error) {
	target := s.resolve(path)

	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session state %s: %w", target, err)
	}

	var state models.AuthSessionState
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt blob is treated the same as a missing one: the caller
		// falls back to a full authentication flow.
		s.logger.Warn().Err(err).Str("path", target).Msg("Discarding unreadable session state")
		if err := s.Discard(path); err != nil {
			return nil, err
		}
		return nil, nil
	}

	s.logger.Debug().
		Str("path", target).
		Str("captured_at", state.CapturedAt.Format("2006-01-02 15:04:05")).
		Msg("Loaded stored session state")

	return &state, nil
}

// Save writes the session state whole. The blob lands via a temp file and
// rename so a partial write can never be observed.
func (s *Store) Save(path string, state *models.AuthSessionState) error {
	target := s.resolve(path)

	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp session file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store session state %s: %w", target, err)
	}

	s.logger.Debug().Str("path", target).Int("bytes", len(data)).Msg("Session state persisted")
	return nil
}

// Discard removes an invalidated session so it cannot be silently reused.
func (s *Store) Discard(path string) error {
	target := s.resolve(path)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard session state %s: %w", target, err)
	}
	s.logger.Debug().Str("path", target).Msg("Session state discarded")
	return nil
}
