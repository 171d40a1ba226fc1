package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUSD(t *testing.T) {
	assert.Equal(t, 25.0, ToUSD(12500000))
	assert.Equal(t, 0.0, ToUSD(0))
	assert.InDelta(t, 24.9, ToUSD(12450000), 0.001)
}

func TestTier(t *testing.T) {
	tests := []struct {
		name string
		usd  float64
		want string
	}{
		{"exact denomination", 25.0, "$25"},
		{"slightly under from usage drift", 24.995, "$25"},
		{"slightly over", 25.005, "$25"},
		{"above smallest but no match", 7.0, TierOther},
		{"between denominations", 30.0, TierOther},
		{"between larger denominations", 40.0, TierOther},
		{"largest denomination", 500.0, "$500"},
		{"beyond largest denomination", 750.0, TierOther},
		{"below smallest", 3.5, TierOther},
		{"zero balance", 0, TierOther},
		{"smallest denomination", 5.0, "$5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tier(tt.usd))
		})
	}
}

func TestRedactKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"normal key", "sk-1234567890abcdef", "sk-1********cdef"},
		{"exactly eight chars", "abcdefgh", "abcd********efgh"},
		{"short key fully masked", "abc", "***"},
		{"empty key", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactKey(tt.key)
			assert.Equal(t, tt.want, got)
			if len(tt.key) >= 8 {
				// The mask length never leaks the key length
				assert.Len(t, got, 16)
			}
		})
	}
}
