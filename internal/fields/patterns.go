package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownVendor is the fallback when no line looks like a business name.
const UnknownVendor = "Unknown Vendor"

var (
	// Business-name shape: "Acme Widgets Inc", "STORE & MART LLC.".
	reBusinessName = regexp.MustCompile(`^[A-Z][a-zA-Z\s&]+(Inc|LLC|Corp|Company|Ltd|Co)\.?$`)

	// Labeled amounts, tried in order.
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btotal[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`),
		regexp.MustCompile(`(?i)\bamount[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`),
		regexp.MustCompile(`(?i)\bbalance[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`),
		regexp.MustCompile(`(?i)\bdue[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`),
		regexp.MustCompile(`(?i)\bgrand\s+total[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`),
	}
	reDollarToken = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*\.\d{2})`)

	reSubtotal = regexp.MustCompile(`(?i)\bsubtotal[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`)
	reTax      = regexp.MustCompile(`(?i)\btax[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`)

	// Date forms, tried in order.
	reSlashDate  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	reDashDate   = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	reISODate    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reNamedMonth = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)

	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)invoice[#:\s]*(\w+)`),
		regexp.MustCompile(`(?i)inv[#:\s]*(\w+)`),
		regexp.MustCompile(`#(\w+)`),
	}

	// Line items: "<description> <qty> <$unit> <$line total>", then the
	// two-column fallback "<description> <$price>" implying qty 1.
	reItemFull  = regexp.MustCompile(`^(.{2,60}?)\s+(\d{1,3})\s+\$?(\d{1,3}(?:,\d{3})*\.\d{2})\s+\$?(\d{1,3}(?:,\d{3})*\.\d{2})\s*$`)
	reItemShort = regexp.MustCompile(`^(.{2,60}?)\s+\$(\d{1,3}(?:,\d{3})*\.\d{2})\s*$`)

	reDecimal = regexp.MustCompile(`\d+\.\d{2}`)

	reReceiptNumber = regexp.MustCompile(`(?i)receipt\s*(?:number|no\.?|#)[:\s]*(\w+)`)
	reEmail         = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	rePaymentTerms  = regexp.MustCompile(`(?i)(?:payment\s+)?terms[:\s]+([^\n]{2,40})`)
	reNetTerms      = regexp.MustCompile(`(?i)\bnet\s+\d{1,3}\b`)

	// Street-address shape for the receipt location line.
	reAddress = regexp.MustCompile(`(?m)^\d{1,5}\s+[A-Za-z0-9 .]+\b(St|Street|Ave|Avenue|Blvd|Boulevard|Rd|Road|Dr|Drive|Ln|Lane|Way)\.?\b.*$`)

	// Statement activity row: "MM/DD description amount". A leading minus
	// or trailing "-" marks a debit.
	reTxnRow = regexp.MustCompile(`(?m)^(\d{1,2}/\d{1,2})\s+(.{2,60}?)\s+(-?)\$?(\d{1,3}(?:,\d{3})*\.\d{2})(-?)\s*$`)

	// Summary rows are not line items.
	reSummaryRow = regexp.MustCompile(`(?i)^(sub)?total|^tax|^amount|^balance|^change|^cash|^due|^tip`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// extractVendor finds the best business-name candidate in the first lines.
func extractVendor(text string) string {
	lines := nonEmptyLines(text)
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		if reBusinessName.MatchString(lines[i]) {
			return lines[i]
		}
	}
	// Short capitalized line free of digits and dollar signs.
	for i := 0; i < limit; i++ {
		ln := lines[i]
		if len(ln) <= 40 && ln == strings.ToUpper(ln) &&
			!strings.ContainsAny(ln, "0123456789$") && hasLetter(ln) {
			return ln
		}
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return UnknownVendor
}

// extractTotal tries labeled amounts in priority order, then falls back to
// the largest $NN.NN token anywhere in the text.
func extractTotal(text string) float64 {
	for _, re := range totalPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseAmount(m[1]); ok && v > 0 {
				return v
			}
		}
	}
	var max float64
	for _, m := range reDollarToken.FindAllStringSubmatch(text, -1) {
		if v, ok := parseAmount(m[1]); ok && v > max {
			max = v
		}
	}
	return max
}

func extractLabeledAmount(text string, re *regexp.Regexp) float64 {
	if m := re.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			return v
		}
	}
	return 0
}

// extractDate tries each supported form; found reports whether anything
// matched (callers default to the current date when it did not).
func extractDate(text string) (t time.Time, found bool) {
	if m := reSlashDate.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[3], m[1], m[2]); ok {
			return d, true
		}
	}
	if m := reDashDate.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[3], m[1], m[2]); ok {
			return d, true
		}
	}
	if m := reISODate.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := reNamedMonth.FindStringSubmatch(text); m != nil {
		mon, ok := monthsByPrefix[strings.ToLower(m[1])[:3]]
		if ok {
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			if day >= 1 && day <= 31 {
				return time.Date(year, mon, day, 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if y < 100 {
		y += 2000
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

func extractInvoiceNumber(text string) string {
	for _, re := range invoiceNumberPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// parseAmount handles thousands separators; reports false for empty or
// malformed input.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(ln); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// extractPaymentTerms prefers a labeled terms line, falling back to a bare
// "Net 30" style token.
func extractPaymentTerms(text string) string {
	if m := rePaymentTerms.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reNetTerms.FindString(text); m != "" {
		return m
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			return true
		}
	}
	return false
}
