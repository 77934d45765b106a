package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/constants"
)

// BoundingBox is an axis-aligned box in pixel coordinates.
type BoundingBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Word is one recognized token with its position and engine confidence (0-100).
type Word struct {
	Text       string      `json:"text"`
	Confidence float32     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Line groups words that the engine placed on one text line.
type Line struct {
	Text       string      `json:"text"`
	Confidence float32     `json:"confidence"`
	Box        BoundingBox `json:"box"`
	Words      []Word      `json:"words,omitempty"`
}

// Block groups lines into a paragraph-level region.
type Block struct {
	Text  string      `json:"text"`
	Box   BoundingBox `json:"box"`
	Lines []Line      `json:"lines,omitempty"`
}

// OCRResult is the raw recognition output for one file.
type OCRResult struct {
	Text       string        `json:"text"`
	Confidence float32       `json:"confidence"` // mean word confidence, 0-100
	Words      []Word        `json:"words,omitempty"`
	Lines      []Line        `json:"lines,omitempty"`
	Blocks     []Block       `json:"blocks,omitempty"`
	Pages      int           `json:"pages"`
	Engine     string        `json:"engine"`
	Duration   time.Duration `json:"duration"`
}

// ImageQuality holds the measured quality signals for an input image.
// All values are normalized to [0,1].
type ImageQuality struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Sharpness  float64 `json:"sharpness"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// PreprocessingNeeds flags the corrections worth applying before OCR.
type PreprocessingNeeds struct {
	NeedsRotation   bool `json:"needs_rotation"`
	NeedsBrightness bool `json:"needs_brightness"`
	NeedsContrast   bool `json:"needs_contrast"`
}

// DetectionResult is the pre-OCR assessment of an input image.
type DetectionResult struct {
	IsReceiptLike      bool               `json:"is_receipt_like"`
	Confidence         int                `json:"confidence"` // 0-100
	Quality            ImageQuality       `json:"quality"`
	Needs              PreprocessingNeeds `json:"needs"`
	OrientationDegrees int                `json:"orientation_degrees"`
}

// LineItem is one purchased item parsed from a receipt or invoice body.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// ReceiptData holds fields extracted from a receipt.
type ReceiptData struct {
	Vendor        string     `json:"vendor"`
	Total         float64    `json:"total"`
	Subtotal      float64    `json:"subtotal,omitempty"`
	TaxAmount     float64    `json:"tax_amount,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	ReceiptNumber string     `json:"receipt_number,omitempty"`
	Location      string     `json:"location,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
}

// InvoiceData holds fields extracted from an invoice.
type InvoiceData struct {
	Vendor        string     `json:"vendor"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	Total         float64    `json:"total"`
	IssueDate     *time.Time `json:"issue_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	PaymentTerms  string     `json:"payment_terms,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
}

// ContractData holds fields extracted from a contract.
type ContractData struct {
	Parties       []string   `json:"parties,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	Value         float64    `json:"value,omitempty"`
	PaymentTerms  string     `json:"payment_terms,omitempty"`
	KeyClauses    []string   `json:"key_clauses,omitempty"`
}

// StatementTransaction is one activity row parsed from a statement body.
type StatementTransaction struct {
	Date        string  `json:"date"` // MM/DD as printed; the year is often absent
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"` // "debit" | "credit"
}

// StatementData holds fields extracted from a bank or account statement.
type StatementData struct {
	Institution    string                 `json:"institution,omitempty"`
	AccountNumber  string                 `json:"account_number,omitempty"`
	PeriodStart    *time.Time             `json:"period_start,omitempty"`
	PeriodEnd      *time.Time             `json:"period_end,omitempty"`
	OpeningBalance float64                `json:"opening_balance,omitempty"`
	ClosingBalance float64                `json:"closing_balance,omitempty"`
	Transactions   []StatementTransaction `json:"transactions,omitempty"`
}

// ExtractedFields carries the per-type structured payload. Exactly one of
// the typed pointers is set, matching DocumentType; Other documents carry
// none.
type ExtractedFields struct {
	Receipt   *ReceiptData   `json:"receipt,omitempty"`
	Invoice   *InvoiceData   `json:"invoice,omitempty"`
	Contract  *ContractData  `json:"contract,omitempty"`
	Statement *StatementData `json:"statement,omitempty"`
}

// ProcessedDocument is the end-to-end result for one input file.
type ProcessedDocument struct {
	FileID       uuid.UUID              `json:"file_id"`
	FileName     string                 `json:"file_name"`
	DocumentType constants.DocumentType `json:"document_type"`
	Detection    DetectionResult        `json:"detection"`
	OCR          OCRResult              `json:"ocr"`
	Fields       ExtractedFields        `json:"fields"`
	Confidence   int                    `json:"confidence"` // extraction confidence, 0-100
	NeedsReview  bool                   `json:"needs_review"`
	ThumbnailKey string                 `json:"thumbnail_key,omitempty"`
	ProcessedAt  time.Time              `json:"processed_at"`
	Duration     time.Duration          `json:"duration"`
}
