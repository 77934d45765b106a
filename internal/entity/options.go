package entity

import "time"

// ProcessingOptions tunes a batch run. Use DefaultProcessingOptions as the
// base and override individual fields; Normalize clamps bad values.
type ProcessingOptions struct {
	// GenerateThumbnails renders a preview image per processed file.
	GenerateThumbnails bool
	// ExtractText runs the OCR pass.
	ExtractText bool
	// ClassifyDocuments runs the keyword classifier.
	ClassifyDocuments bool
	// ExtractStructuredData runs the per-type field extractor.
	ExtractStructuredData bool
	// ConfidenceThreshold routes documents below it to manual review.
	ConfidenceThreshold int
	// EnableReceiptDetection runs the image quality and receipt-likeness pass.
	EnableReceiptDetection bool
	// EnablePreprocessing applies corrections suggested by detection.
	EnablePreprocessing bool
	// ParallelProcessing selects chunked parallel execution over sequential.
	ParallelProcessing bool
	// MaxConcurrent bounds how many files run in parallel within a chunk.
	MaxConcurrent int
	// FileTimeout bounds processing of a single file. A file exceeding it
	// is recorded as a failed outcome.
	FileTimeout time.Duration
}

// DefaultProcessingOptions returns the options used when the caller
// provides none.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		GenerateThumbnails:     true,
		ExtractText:            true,
		ClassifyDocuments:      true,
		ExtractStructuredData:  true,
		ConfidenceThreshold:    80,
		EnableReceiptDetection: true,
		EnablePreprocessing:    true,
		ParallelProcessing:     true,
		MaxConcurrent:          5,
		FileTimeout:            3 * time.Minute,
	}
}

// Normalize clamps out-of-range values back to defaults.
func (o ProcessingOptions) Normalize() ProcessingOptions {
	def := DefaultProcessingOptions()
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 100 {
		o.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = def.MaxConcurrent
	}
	if o.FileTimeout <= 0 {
		o.FileTimeout = def.FileTimeout
	}
	return o
}
