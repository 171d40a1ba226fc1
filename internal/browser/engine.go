package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/adsum/internal/interfaces"
)

// stealthScript masks the most common automation fingerprints before any page
// script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
`

// Options configures one browser engine instance.
type Options struct {
	Headless          bool
	Proxy             string
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	APIRateLimit      time.Duration
	PollInterval      time.Duration
	ScreenshotDir     string
}

// withDefaults fills timing knobs that were left unset.
func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.APIRateLimit <= 0 {
		o.APIRateLimit = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	return o
}

// Engine drives a single Chrome instance through chromedp. One engine serves
// exactly one account pipeline; instances are never shared.
type Engine struct {
	browserCtx    context.Context
	cancels       []context.CancelFunc
	limiter       *rate.Limiter
	logger        arbor.ILogger
	navTimeout    time.Duration
	pollInterval  time.Duration
	screenshotDir string
}

// NewEngine launches a Chrome instance with the given options and verifies it
// responds before handing it out.
func NewEngine(opts Options, logger arbor.ILogger) (interfaces.AutomationEngine, error) {
	opts = opts.withDefaults()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		allocatorOpts = append(allocatorOpts, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	}
	if opts.Proxy != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	engine := &Engine{
		browserCtx:    browserCtx,
		cancels:       []context.CancelFunc{browserCancel, allocatorCancel},
		limiter:       rate.NewLimiter(rate.Every(opts.APIRateLimit), 1),
		logger:        logger,
		navTimeout:    opts.NavigationTimeout,
		pollInterval:  opts.PollInterval,
		screenshotDir: opts.ScreenshotDir,
	}

	// Startup test plus fingerprint masking and network domain for cookie
	// operations
	startCtx, startCancel := context.WithTimeout(browserCtx, opts.NavigationTimeout)
	defer startCancel()

	err := chromedp.Run(startCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("browser instance failed startup test: %w", err)
	}

	logger.Debug().
		Bool("headless", opts.Headless).
		Int("viewport_width", opts.ViewportWidth).
		Int("viewport_height", opts.ViewportHeight).
		Str("proxy", opts.Proxy).
		Msg("Browser engine started")

	return engine, nil
}

// queryOption picks the selector strategy: XPath expressions go through the
// search backend, everything else is a CSS query.
func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads a URL and waits for the document body to be ready.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	e.logger.Debug().Str("url", url).Msg("Navigation complete")
	return nil
}

// Fill clears the matched input and types the value into it.
func (e *Engine) Fill(ctx context.Context, selector, value string) error {
	fillCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	err := chromedp.Run(fillCtx,
		chromedp.WaitVisible(selector, queryOption(selector)),
		chromedp.Clear(selector, queryOption(selector)),
		chromedp.SendKeys(selector, value, queryOption(selector)),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

// Click clicks the element matched by selector.
func (e *Engine) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	if err := chromedp.Run(clickCtx, chromedp.Click(selector, queryOption(selector))); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// WaitVisible blocks until selector is visible or the timeout expires.
func (e *Engine) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := e.bounded(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, queryOption(selector))); err != nil {
		return fmt.Errorf("element %s not visible within %s: %w", selector, timeout, err)
	}
	return nil
}

// WaitFor polls cond until it reports true or the timeout expires.
func (e *Engine) WaitFor(ctx context.Context, cond interfaces.Condition, timeout time.Duration) error {
	waitCtx, cancel := e.bounded(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond(waitCtx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("condition not met within %s: %w", timeout, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// CallAPI performs a fetch inside the page context so that session cookies and
// CDN anti-automation headers travel with the request.
func (e *Engine) CallAPI(ctx context.Context, path, method string, body any) (*interfaces.APIResponse, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyArg string
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyArg = fmt.Sprintf(", body: %s", jsStringLiteral(encoded))
	}

	script := fmt.Sprintf(`(async () => {
		const resp = await fetch(%q, {
			method: %q,
			headers: { 'Content-Type': 'application/json' }%s
		});
		const text = await resp.text();
		return { status: resp.status, body: text };
	})()`, path, method, bodyArg)

	callCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	var result struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}
	err := chromedp.Run(callCtx,
		chromedp.Evaluate(script, &result, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("API call %s %s failed: %w", method, path, err)
	}

	e.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", result.Status).
		Msg("In-page API call complete")

	return &interfaces.APIResponse{
		StatusCode: result.Status,
		Body:       []byte(result.Body),
	}, nil
}

// jsStringLiteral renders a JSON-encoded body as a JavaScript string literal.
func jsStringLiteral(encoded []byte) string {
	quoted, _ := json.Marshal(string(encoded))
	return string(quoted)
}

// SessionState serializes all browser cookies into an opaque blob.
func (e *Engine) SessionState(ctx context.Context) ([]byte, error) {
	stateCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(stateCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to capture session cookies: %w", err)
	}

	blob, err := json.Marshal(cookies)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session state: %w", err)
	}

	e.logger.Debug().Int("cookie_count", len(cookies)).Msg("Session state captured")
	return blob, nil
}

// LoadSessionState restores cookies captured by a previous SessionState call.
func (e *Engine) LoadSessionState(ctx context.Context, blob []byte) error {
	var cookies []*network.Cookie
	if err := json.Unmarshal(blob, &cookies); err != nil {
		return fmt.Errorf("failed to deserialize session state: %w", err)
	}

	loadCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	err := chromedp.Run(loadCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				setter := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly)
				if c.Expires > 0 {
					expiry := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
					setter = setter.WithExpires(&expiry)
				}
				if err := setter.Do(ctx); err != nil {
					// Continue with the remaining cookies even if one fails
					e.logger.Warn().Err(err).Str("cookie_name", c.Name).Msg("Failed to restore cookie")
				}
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to restore session state: %w", err)
	}

	e.logger.Debug().Int("cookie_count", len(cookies)).Msg("Session state restored")
	return nil
}

// Screenshot captures a diagnostic screenshot named name_<uuid>.png.
func (e *Engine) Screenshot(ctx context.Context, name string) (string, error) {
	if e.screenshotDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.screenshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	shotCtx, cancel := e.bounded(ctx, e.navTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	path := filepath.Join(e.screenshotDir, fmt.Sprintf("%s_%s.png", name, uuid.New().String()[:8]))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	e.logger.Info().Str("path", path).Msg("Diagnostic screenshot saved")
	return path, nil
}

// Close releases the browser and all its resources.
func (e *Engine) Close() error {
	for _, cancel := range e.cancels {
		if cancel != nil {
			cancel()
		}
	}
	return nil
}

// bounded derives a context that honors both the caller's cancellation and the
// engine's own timeout, tied to the browser lifetime.
func (e *Engine) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithTimeout(e.browserCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
