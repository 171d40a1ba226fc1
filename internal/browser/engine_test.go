package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()

	assert.Equal(t, 30*time.Second, opts.NavigationTimeout)
	assert.Equal(t, 2*time.Second, opts.APIRateLimit)
	assert.Equal(t, time.Second, opts.PollInterval)
}

func TestOptionsWithDefaultsKeepsConfiguredValues(t *testing.T) {
	opts := Options{
		NavigationTimeout: 10 * time.Second,
		APIRateLimit:      time.Second,
		PollInterval:      3 * time.Second,
	}.withDefaults()

	assert.Equal(t, 10*time.Second, opts.NavigationTimeout)
	assert.Equal(t, time.Second, opts.APIRateLimit)
	assert.Equal(t, 3*time.Second, opts.PollInterval)
}
