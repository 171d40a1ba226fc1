package interfaces

import (
	"context"
	"time"
)

// APIResponse is the raw result of an in-page API call. Classification of the
// payload belongs to the caller; the engine only transports it.
type APIResponse struct {
	StatusCode int    `json:"status"`
	Body       []byte `json:"body"`
}

// Condition is a predicate polled by WaitFor. It returns true once the awaited
// state has been reached.
type Condition func(ctx context.Context) (bool, error)

// AutomationEngine is the browser-automation surface the core depends on. Any
// implementation satisfying this contract is substitutable; tests use an
// in-memory fake, production uses chromedp.
type AutomationEngine interface {
	// Navigate loads a URL and waits for the page to settle
	Navigate(ctx context.Context, url string) error

	// Fill types a value into the element matched by selector
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the element matched by selector
	Click(ctx context.Context, selector string) error

	// WaitVisible blocks until selector is visible or the timeout expires
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// WaitFor polls cond until it reports true or the timeout expires
	WaitFor(ctx context.Context, cond Condition, timeout time.Duration) error

	// CallAPI performs a fetch against a site-relative path inside the
	// authenticated page context so that cookies and anti-automation headers
	// travel with the request
	CallAPI(ctx context.Context, path, method string, body any) (*APIResponse, error)

	// SessionState serializes the current browser session to an opaque blob
	SessionState(ctx context.Context) ([]byte, error)

	// LoadSessionState restores a previously captured session blob
	LoadSessionState(ctx context.Context, blob []byte) error

	// Screenshot captures a diagnostic screenshot and returns the file path
	Screenshot(ctx context.Context, name string) (string, error)

	// Close releases the browser and all its resources
	Close() error
}
