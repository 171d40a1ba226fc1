package browser

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/common"
	"github.com/ternarybob/adsum/internal/interfaces"
)

// NewFactory returns an EngineFactory that launches a fresh Chrome instance
// per account with rotated fingerprints.
func NewFactory(cfg *common.BrowserConfig, logger arbor.ILogger) interfaces.EngineFactory {
	return func(opts interfaces.EngineOptions) (interfaces.AutomationEngine, error) {
		width, height := randomViewport()
		return NewEngine(Options{
			Headless:          opts.Headless,
			Proxy:             opts.Proxy,
			UserAgent:         userAgent(cfg.RotateUserAgent),
			ViewportWidth:     width,
			ViewportHeight:    height,
			NavigationTimeout: cfg.NavigationTimeout,
			APIRateLimit:      cfg.APIRateLimit,
			PollInterval:      cfg.PollInterval,
			ScreenshotDir:     opts.ScreenshotDir,
		}, logger)
	}
}
