// Package ocr wraps pluggable text-recognition backends behind one
// adapter. The adapter owns engine lifecycle (init once, recognize many,
// tear down) and converts backend failures into the pipeline's error
// taxonomy.
package ocr

import (
	"context"

	"github.com/joseph-ayodele/docintake/internal/entity"
)

// Engine is a text-recognition backend. Implementations must tolerate
// concurrent Recognize calls.
type Engine interface {
	// RecognizeImage runs recognition on raster image bytes.
	RecognizeImage(ctx context.Context, img []byte, lang string) (entity.OCRResult, error)
	// RecognizePDF extracts text from a PDF, rasterizing when the document
	// carries no text layer.
	RecognizePDF(ctx context.Context, pdf []byte, lang string) (entity.OCRResult, error)
	// Close releases the backend handle. The engine is unusable afterwards.
	Close() error
}
