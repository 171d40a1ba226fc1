package models

import "time"

// AuthSessionState is an opaque serialized browser-session blob (cookies,
// storage) for one account+site pair. The core never inspects Blob; only the
// automation engine that produced it can interpret it.
type AuthSessionState struct {
	Blob       []byte    `json:"blob"`
	CapturedAt time.Time `json:"captured_at"`
}
