package fields

import "strings"

// signals records which structured fields an extraction located.
type signals struct {
	vendorFound bool
	totalFound  bool
	dateFound   bool
	itemsFound  bool
}

// Confidence factor weights.
const (
	confVendor   = 20
	confTotal    = 20
	confDate     = 15
	confItems    = 15
	confTextLen  = 10
	confCurrency = 10
	confDecimal  = 10

	minTextLen = 50
)

// scoreConfidence computes the extraction confidence (0-100). It reports 0
// when no factor fired at all; a nonzero floor would be misleading.
func scoreConfidence(text string, s signals) int {
	score := 0
	if s.vendorFound {
		score += confVendor
	}
	if s.totalFound {
		score += confTotal
	}
	if s.dateFound {
		score += confDate
	}
	if s.itemsFound {
		score += confItems
	}
	if len(text) > minTextLen {
		score += confTextLen
	}
	if strings.Contains(text, "$") {
		score += confCurrency
	}
	if reDecimal.MatchString(text) {
		score += confDecimal
	}
	if score > 100 {
		score = 100
	}
	return score
}
