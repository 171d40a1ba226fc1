package browser

import (
	browserua "github.com/EDDYCJY/fake-useragent"
	"github.com/mazen160/go-random"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// userAgent returns a rotated Chrome user agent, or a fixed fallback when
// rotation is disabled or the rotation source is unavailable.
func userAgent(rotate bool) string {
	if !rotate {
		return defaultUserAgent
	}
	if ua := browserua.Chrome(); ua != "" {
		return ua
	}
	return defaultUserAgent
}

// randomViewport picks a desktop-sized viewport so repeated runs do not share
// an identical window fingerprint.
func randomViewport() (width, height int) {
	width, err := random.IntRange(1280, 1920)
	if err != nil {
		width = 1366
	}
	height, err = random.IntRange(720, 1080)
	if err != nil {
		height = 768
	}
	return width, height
}
