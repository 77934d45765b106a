// Package classify assigns a document type from keyword signatures in the
// recognized text and the file name. Classification is a pure function and
// never fails; unrecognizable input lands on Other.
package classify

import (
	"strings"

	"github.com/joseph-ayodele/docintake/constants"
)

// keywords holds the per-type signature sets. Matching is case-insensitive
// and counts every occurrence.
var keywords = map[constants.DocumentType][]string{
	constants.Receipt: {
		"receipt", "total", "subtotal", "tax", "change", "cash",
		"thank you", "cashier", "transaction",
	},
	constants.Invoice: {
		"invoice", "bill to", "due date", "payment terms", "net 30",
		"remit to", "purchase order",
	},
	constants.Contract: {
		"agreement", "whereas", "hereby", "termination", "party",
		"governing law", "witness whereof",
	},
	constants.Statement: {
		"statement", "account balance", "minimum payment", "opening balance",
		"closing balance", "statement period",
	},
}

// Classify scores the text plus an optional filename hint against every
// signature set and returns the winner. Ties, including the all-zero case,
// resolve to Other.
func Classify(text, filenameHint string) constants.DocumentType {
	haystack := strings.ToLower(text)
	if filenameHint != "" {
		haystack += "\n" + strings.ToLower(filenameHint)
	}

	best := constants.Other
	bestScore := 0
	tied := false
	for _, dt := range constants.DocumentTypes {
		kws, ok := keywords[dt]
		if !ok {
			continue
		}
		score := 0
		for _, kw := range kws {
			score += strings.Count(haystack, kw)
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = dt, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return constants.Other
	}
	return best
}

// ClassifyFilename classifies on the file name alone, for use before any
// text is available. Callers should re-classify once OCR text exists and
// prefer that result.
func ClassifyFilename(fileName string) constants.DocumentType {
	return Classify("", fileName)
}
