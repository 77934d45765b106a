// Package pipeline composes detection, preprocessing, recognition,
// classification and extraction into the single-document processor. The
// processor is the pipeline's only failure boundary: every lower-level
// error either degrades the result or surfaces here as one per-file error.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/detect"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/fields"
	"github.com/joseph-ayodele/docintake/internal/storage"
	"github.com/joseph-ayodele/docintake/internal/telemetry"
)

const thumbnailEdge = 300

// Recognizer is the processor's view of the OCR adapter.
type Recognizer interface {
	Recognize(ctx context.Context, fileName string, data []byte) (entity.OCRResult, error)
}

// Processor runs one file through the full pipeline.
type Processor struct {
	logger   *slog.Logger
	detector *detect.Detector
	ocr      Recognizer
	store    storage.ObjectStore
}

// Option configures a Processor.
type Option func(*Processor)

// WithObjectStore enables storage-backed input and thumbnail upload.
func WithObjectStore(s storage.ObjectStore) Option {
	return func(p *Processor) { p.store = s }
}

// WithDetector overrides the default detector.
func WithDetector(d *detect.Detector) Option {
	return func(p *Processor) { p.detector = d }
}

// NewProcessor builds a processor around the given recognizer.
func NewProcessor(logger *slog.Logger, recognizer Recognizer, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{logger: logger, ocr: recognizer}
	for _, opt := range opts {
		opt(p)
	}
	if p.detector == nil {
		p.detector = detect.NewDetector(detect.WithLogger(logger))
	}
	return p
}

// Process runs the pipeline for one file. Steps are individually optional
// per options and individually fail-soft; only input retrieval and a
// required OCR pass can fail the file. A panic anywhere below is converted
// into the returned error, never propagated.
func (p *Processor) Process(ctx context.Context, file entity.InputFile, opts entity.ProcessingOptions) (doc *entity.ProcessedDocument, err error) {
	start := time.Now()
	telemetry.FilesInFlight.Inc()
	defer telemetry.FilesInFlight.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processor.panic", "file", file.Name, "panic", r)
			doc = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		telemetry.FileDuration.Observe(time.Since(start).Seconds())
	}()

	opts = opts.Normalize()

	data, err := p.inputBytes(ctx, file)
	if err != nil {
		return nil, err
	}

	fileID := file.ID
	if fileID == uuid.Nil {
		fileID = uuid.New()
	}
	result := &entity.ProcessedDocument{
		FileID:   fileID,
		FileName: file.Name,
	}

	isImage := constants.MapExtToFormat(filepath.Ext(file.Name)) == constants.IMAGE

	// 1) Detection and corrective preprocessing.
	if opts.EnableReceiptDetection && isImage {
		result.Detection = p.detector.Detect(ctx, data)
		p.logger.Debug("processor.detect.ok",
			"file", file.Name,
			"receipt_like", result.Detection.IsReceiptLike,
			"confidence", result.Detection.Confidence)
		if opts.EnablePreprocessing {
			corrected, corrErr := detect.ApplyCorrections(data, result.Detection.Needs, result.Detection.Quality)
			if corrErr != nil {
				p.logger.Warn("processor.preprocess.failed", "file", file.Name, "error", corrErr)
			} else {
				data = corrected
			}
		}
	}

	// Provisional type from the file name steers the OCR pre-pass.
	docType := classify.ClassifyFilename(file.Name)

	// 2) Recognition.
	runOCR := opts.ExtractText || opts.ClassifyDocuments || opts.ExtractStructuredData
	if runOCR {
		ocrInput := data
		if isImage {
			prepared, prepErr := detect.PrepareForOCR(data, docType)
			if prepErr != nil {
				p.logger.Warn("processor.ocr.prepass.failed", "file", file.Name, "error", prepErr)
			} else {
				ocrInput = prepared
			}
		}
		ocrRes, ocrErr := p.ocr.Recognize(ctx, file.Name, ocrInput)
		if ocrErr != nil {
			return nil, ocrErr
		}
		result.OCR = ocrRes
		p.logger.Info("processor.ocr.ok",
			"file", file.Name,
			"engine", ocrRes.Engine,
			"pages", ocrRes.Pages,
			"confidence", ocrRes.Confidence)
	}

	// 3) Classification. Text-based wins over the filename guess.
	if opts.ClassifyDocuments && result.OCR.Text != "" {
		docType = classify.Classify(result.OCR.Text, file.Name)
	}
	result.DocumentType = docType

	// 4) Structured extraction.
	if opts.ExtractStructuredData {
		extracted, conf := fields.Extract(result.OCR.Text, docType)
		if valErr := fields.ValidateExtracted(extracted, docType); valErr != nil && docType != constants.Other {
			p.logger.Warn("processor.extract.schema", "file", file.Name, "type", docType, "error", valErr)
		}
		result.Fields = extracted
		result.Confidence = conf
	}

	// 5) Review routing on extraction confidence.
	result.NeedsReview = result.Confidence < opts.ConfidenceThreshold
	if result.NeedsReview {
		telemetry.ReviewRouted.Inc()
	}

	// 6) Thumbnail for preview surfaces.
	if opts.GenerateThumbnails && p.store != nil && isImage {
		p.uploadThumbnail(ctx, result, data)
	}

	result.ProcessedAt = time.Now().UTC()
	result.Duration = time.Since(start)
	telemetry.DocumentsByType.WithLabelValues(string(docType)).Inc()
	p.logger.Info("processor.ok",
		"file", file.Name,
		"type", docType,
		"confidence", result.Confidence,
		"needs_review", result.NeedsReview,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

func (p *Processor) inputBytes(ctx context.Context, file entity.InputFile) ([]byte, error) {
	if len(file.Data) > 0 {
		return file.Data, nil
	}
	if file.StorageKey == "" {
		return nil, fmt.Errorf("file %q has no data and no storage key", file.Name)
	}
	if p.store == nil {
		return nil, fmt.Errorf("file %q needs the object store but none is configured", file.Name)
	}
	data, err := p.store.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", file.StorageKey, err)
	}
	return data, nil
}

func (p *Processor) uploadThumbnail(ctx context.Context, result *entity.ProcessedDocument, data []byte) {
	thumb, err := detect.Thumbnail(data, thumbnailEdge)
	if err != nil {
		p.logger.Warn("processor.thumbnail.failed", "file", result.FileName, "error", err)
		return
	}
	key := fmt.Sprintf("thumbnails/%s.jpg", result.FileID)
	if _, err := p.store.Put(ctx, key, thumb, "image/jpeg"); err != nil {
		p.logger.Warn("processor.thumbnail.upload.failed", "file", result.FileName, "error", err)
		return
	}
	result.ThumbnailKey = key
}
