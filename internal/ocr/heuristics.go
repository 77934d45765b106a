package ocr

import (
	"regexp"
	"strings"
)

var (
	reDateish = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b20\d{2}-\d{2}-\d{2}\b`)
	reCurr    = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€]`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

// heuristicConfidence estimates recognition quality (0-100) from text
// characteristics alone. Used when the backend reports no word-level
// confidence, e.g. for a PDF text layer.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(20) // base
	if reDateish.MatchString(txtL) {
		score += 20
	}
	if reCurr.MatchString(txtL) {
		score += 15
	}
	if reAmount.MatchString(txtL) {
		score += 15
	}
	if len(txt) > 120 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
