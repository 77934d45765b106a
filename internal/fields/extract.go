// Package fields pulls structured data out of raw OCR text with per-type
// heuristic parsers. Extraction never fails: a field that cannot be found
// is left empty and lowers the confidence score instead.
package fields

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

var (
	reDueDate        = regexp.MustCompile(`(?i)due\s+date[:\s]*(.{0,40})`)
	reParties        = regexp.MustCompile(`(?i)between\s+(.{2,60}?)\s+and\s+(.{2,60}?)(?:[,.\n]|$)`)
	reAccountNumber  = regexp.MustCompile(`(?i)account\s+(?:number|no\.?|#)[:\s]*([\dXx*-]{4,})`)
	rePeriod         = regexp.MustCompile(`(?i)statement\s+period[:\s]*(.{0,40}?)\s+(?:to|through|-)\s+(.{0,40})`)
	reClosingBalance = regexp.MustCompile(`(?i)(?:closing|ending)\s+balance[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`)
	reOpeningBalance = regexp.MustCompile(`(?i)(?:opening|beginning)\s+balance[:\s]+\$?(\d{1,3}(?:,\d{3})*\.?\d*)`)
	rePaymentMethod  = regexp.MustCompile(`(?i)\b(visa|mastercard|amex|american express|discover|debit|credit|cash|check)\b`)
)

// clauseKeywords are the contract clause headings worth surfacing.
var clauseKeywords = []string{
	"termination",
	"confidentiality",
	"indemnification",
	"governing law",
	"arbitration",
	"non-compete",
	"limitation of liability",
	"force majeure",
}

// Extract parses the text for the given document type and returns the
// typed payload plus the extraction confidence (0-100).
func Extract(text string, docType constants.DocumentType) (entity.ExtractedFields, int) {
	switch docType {
	case constants.Receipt:
		return extractReceipt(text)
	case constants.Invoice:
		return extractInvoice(text)
	case constants.Contract:
		return extractContract(text)
	case constants.Statement:
		return extractStatement(text)
	default:
		return entity.ExtractedFields{}, scoreConfidence(text, signals{})
	}
}

func extractReceipt(text string) (entity.ExtractedFields, int) {
	data := &entity.ReceiptData{
		Vendor:   extractVendor(text),
		Total:    extractTotal(text),
		Subtotal: extractLabeledAmount(text, reSubtotal),
		Items:    extractItems(text),
	}
	// Tax matches "tax" but must not swallow the subtotal row.
	data.TaxAmount = extractLabeledAmount(text, reTax)

	sig := signals{
		vendorFound: data.Vendor != UnknownVendor,
		totalFound:  data.Total > 0,
		itemsFound:  len(data.Items) > 0,
	}
	if d, ok := extractDate(text); ok {
		data.Date = &d
		sig.dateFound = true
	} else {
		now := time.Now().UTC().Truncate(24 * time.Hour)
		data.Date = &now
	}
	if m := rePaymentMethod.FindStringSubmatch(text); m != nil {
		data.PaymentMethod = strings.ToLower(m[1])
	}
	if m := reReceiptNumber.FindStringSubmatch(text); m != nil {
		data.ReceiptNumber = m[1]
	}
	if m := reAddress.FindString(text); m != "" {
		data.Location = strings.TrimSpace(m)
	}

	return entity.ExtractedFields{Receipt: data}, scoreConfidence(text, sig)
}

func extractInvoice(text string) (entity.ExtractedFields, int) {
	data := &entity.InvoiceData{
		Vendor:        extractVendor(text),
		InvoiceNumber: extractInvoiceNumber(text),
		Total:         extractTotal(text),
		Items:         extractItems(text),
	}

	sig := signals{
		vendorFound: data.Vendor != UnknownVendor,
		totalFound:  data.Total > 0,
		itemsFound:  len(data.Items) > 0,
	}
	if d, ok := extractDate(text); ok {
		data.IssueDate = &d
		sig.dateFound = true
	}
	if m := reDueDate.FindStringSubmatch(text); m != nil {
		if d, ok := extractDate(m[1]); ok {
			data.DueDate = &d
		}
	}
	if m := reEmail.FindString(text); m != "" {
		data.CustomerEmail = m
	}
	data.PaymentTerms = extractPaymentTerms(text)

	return entity.ExtractedFields{Invoice: data}, scoreConfidence(text, sig)
}

func extractContract(text string) (entity.ExtractedFields, int) {
	data := &entity.ContractData{
		Value: extractTotal(text),
	}
	if m := reParties.FindStringSubmatch(text); m != nil {
		data.Parties = []string{strings.TrimSpace(m[1]), strings.TrimSpace(m[2])}
	}
	data.PaymentTerms = extractPaymentTerms(text)
	lower := strings.ToLower(text)
	for _, clause := range clauseKeywords {
		if strings.Contains(lower, clause) {
			data.KeyClauses = append(data.KeyClauses, clause)
		}
	}

	sig := signals{
		vendorFound: len(data.Parties) > 0,
		totalFound:  data.Value > 0,
	}
	if d, ok := extractDate(text); ok {
		data.EffectiveDate = &d
		sig.dateFound = true
	}

	return entity.ExtractedFields{Contract: data}, scoreConfidence(text, sig)
}

func extractStatement(text string) (entity.ExtractedFields, int) {
	data := &entity.StatementData{
		Institution:    extractVendor(text),
		OpeningBalance: extractLabeledAmount(text, reOpeningBalance),
		ClosingBalance: extractLabeledAmount(text, reClosingBalance),
		Transactions:   extractTransactions(text),
	}
	if data.ClosingBalance == 0 {
		data.ClosingBalance = extractTotal(text)
	}
	if m := reAccountNumber.FindStringSubmatch(text); m != nil {
		data.AccountNumber = m[1]
	}

	sig := signals{
		vendorFound: data.Institution != UnknownVendor,
		totalFound:  data.ClosingBalance > 0,
	}
	if m := rePeriod.FindStringSubmatch(text); m != nil {
		if d, ok := extractDate(m[1]); ok {
			data.PeriodStart = &d
			sig.dateFound = true
		}
		if d, ok := extractDate(m[2]); ok {
			data.PeriodEnd = &d
			sig.dateFound = true
		}
	}
	if !sig.dateFound {
		if d, ok := extractDate(text); ok {
			data.PeriodEnd = &d
			sig.dateFound = true
		}
	}

	return entity.ExtractedFields{Statement: data}, scoreConfidence(text, sig)
}

// extractTransactions parses "MM/DD description amount" activity rows. A
// minus sign on either side of the amount marks a debit.
func extractTransactions(text string) []entity.StatementTransaction {
	var out []entity.StatementTransaction
	for _, m := range reTxnRow.FindAllStringSubmatch(text, -1) {
		amount, ok := parseAmount(m[4])
		if !ok {
			continue
		}
		txType := "credit"
		if m[3] == "-" || m[5] == "-" {
			txType = "debit"
		}
		out = append(out, entity.StatementTransaction{
			Date:        m[1],
			Description: strings.TrimSpace(m[2]),
			Amount:      amount,
			Type:        txType,
		})
	}
	return out
}
