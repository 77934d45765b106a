package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// EngineFactory builds the recognition backend. Split out so tests can
// inject a stub without touching real binaries or cloud credentials.
type EngineFactory func(ctx context.Context) (Engine, error)

// Adapter is the pipeline's entry point to text recognition. It holds one
// pooled engine handle, initialized on first use and reused across calls
// until Close.
type Adapter struct {
	cfg     common.OCRConfig
	logger  *slog.Logger
	factory EngineFactory

	once    sync.Once
	engine  Engine
	initErr error
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithEngineFactory overrides how the backend is built.
func WithEngineFactory(f EngineFactory) AdapterOption {
	return func(a *Adapter) { a.factory = f }
}

// NewAdapter builds an adapter for the configured engine. The backend is
// not touched until the first Recognize call.
func NewAdapter(cfg common.OCRConfig, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.factory == nil {
		a.factory = a.defaultFactory
	}
	return a
}

func (a *Adapter) defaultFactory(ctx context.Context) (Engine, error) {
	switch a.cfg.Engine {
	case "vision":
		return NewVisionEngine(ctx)
	case "", "tesseract":
		return NewTesseractEngine(TesseractConfig{
			Tesseract:   a.cfg.Tesseract,
			Pdftotext:   a.cfg.Pdftotext,
			Pdftoppm:    a.cfg.Pdftoppm,
			TessdataDir: a.cfg.TessdataDir,
			DPI:         a.cfg.DPI,
			MaxPages:    a.cfg.MaxPages,
		}, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", a.cfg.Engine)
	}
}

// Init forces engine initialization. Call it at startup to surface an
// unavailable backend before any jobs are accepted.
func (a *Adapter) Init(ctx context.Context) error {
	_, err := a.get(ctx)
	return err
}

func (a *Adapter) get(ctx context.Context) (Engine, error) {
	a.once.Do(func() {
		a.engine, a.initErr = a.factory(ctx)
		if a.initErr != nil {
			a.logger.Error("ocr.engine.init.failed", "engine", a.cfg.Engine, "error", a.initErr)
		} else {
			a.logger.Info("ocr.engine.ready", "engine", a.cfg.Engine)
		}
	})
	if a.initErr != nil {
		return nil, common.NewAppError("OCR_ENGINE_UNAVAILABLE", "ocr backend failed to initialize", common.ErrEngineUnavailable)
	}
	return a.engine, nil
}

// Recognize runs recognition on one file, dispatching on its extension.
// The returned text is normalized.
func (a *Adapter) Recognize(ctx context.Context, fileName string, data []byte) (entity.OCRResult, error) {
	eng, err := a.get(ctx)
	if err != nil {
		return entity.OCRResult{}, err
	}

	lang := a.cfg.TesseractLang
	var res entity.OCRResult
	switch constants.MapExtToFormat(filepath.Ext(fileName)) {
	case constants.PDF:
		res, err = eng.RecognizePDF(ctx, data, lang)
	case constants.IMAGE:
		res, err = eng.RecognizeImage(ctx, data, lang)
	default:
		return entity.OCRResult{}, common.NewAppError("OCR_UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported extension on %q", fileName), common.ErrInvalidInput)
	}
	if err != nil {
		a.logger.Error("ocr.recognize.failed", "file", fileName, "error", err)
		return entity.OCRResult{}, common.NewAppError("OCR_RECOGNITION_FAILED", err.Error(), common.ErrRecognitionFailed)
	}

	res.Text = Normalize(res.Text)
	if res.Confidence == 0 && res.Text != "" {
		res.Confidence = heuristicConfidence(res.Text)
	}
	a.logger.Debug("ocr.recognize.ok",
		"file", fileName,
		"engine", res.Engine,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence)
	return res, nil
}

// Close tears down the pooled engine. The adapter must not be used after.
func (a *Adapter) Close() error {
	if a.engine != nil {
		return a.engine.Close()
	}
	return nil
}
