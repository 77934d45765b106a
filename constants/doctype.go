package constants

// DocumentType is the closed set of document classes the pipeline recognizes.
type DocumentType string

const (
	Receipt   DocumentType = "RECEIPT"
	Invoice   DocumentType = "INVOICE"
	Contract  DocumentType = "CONTRACT"
	Statement DocumentType = "STATEMENT"
	Other     DocumentType = "OTHER"
)

// DocumentTypes lists every recognized type in a stable order.
var DocumentTypes = []DocumentType{Receipt, Invoice, Contract, Statement, Other}
