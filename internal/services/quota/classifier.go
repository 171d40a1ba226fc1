package quota

import (
	"math"
	"strconv"
	"strings"
)

// QuotaPerUSD is the site's raw quota units per displayed dollar.
const QuotaPerUSD = 500000

// TierOther groups balances that match no standard denomination.
const TierOther = "other"

// tierDenominations are the standard dollar denominations keys are grouped by
// in reports.
var tierDenominations = []int{5, 10, 25, 50, 100, 200, 500}

// ToUSD converts raw quota units to their dollar value.
func ToUSD(raw int64) float64 {
	return float64(raw) / QuotaPerUSD
}

// Tier classifies a dollar balance into its denomination bucket. Only exact
// denomination matches count, with a small tolerance for fractional drift;
// every other balance lands in TierOther so no key is ever dropped.
func Tier(usd float64) string {
	for _, d := range tierDenominations {
		if math.Abs(usd-float64(d)) <= 0.01 {
			return tierName(d)
		}
	}
	return TierOther
}

func tierName(denomination int) string {
	return "$" + strconv.Itoa(denomination)
}

// RedactKey masks an API key for display: first four and last four characters
// with a fixed-length mask between. Keys shorter than eight characters are
// fully masked so neither end leaks.
func RedactKey(key string) string {
	if len(key) < 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "********" + key[len(key)-4:]
}

// RoundUSD rounds a dollar value to cents for display.
func RoundUSD(usd float64) float64 {
	return math.Round(usd*100) / 100
}
