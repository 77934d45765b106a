package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

type stubEngine struct {
	imageCalls int
	pdfCalls   int
	closed     bool
	result     entity.OCRResult
	err        error
}

func (s *stubEngine) RecognizeImage(ctx context.Context, img []byte, lang string) (entity.OCRResult, error) {
	s.imageCalls++
	return s.result, s.err
}

func (s *stubEngine) RecognizePDF(ctx context.Context, pdf []byte, lang string) (entity.OCRResult, error) {
	s.pdfCalls++
	return s.result, s.err
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func TestAdapterPoolsEngine(t *testing.T) {
	eng := &stubEngine{result: entity.OCRResult{Text: "hello   world", Confidence: 90}}
	var builds int
	a := NewAdapter(common.OCRConfig{}, nil, WithEngineFactory(func(ctx context.Context) (Engine, error) {
		builds++
		return eng, nil
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := a.Recognize(ctx, "scan.png", []byte("img")); err != nil {
			t.Fatalf("Recognize: %v", err)
		}
	}
	if builds != 1 {
		t.Errorf("engine built %d times, want 1", builds)
	}
	if eng.imageCalls != 3 {
		t.Errorf("image calls = %d, want 3", eng.imageCalls)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !eng.closed {
		t.Error("Close must reach the engine")
	}
}

func TestAdapterNormalizesText(t *testing.T) {
	eng := &stubEngine{result: entity.OCRResult{Text: "a\t\tb\r\nc", Confidence: 80}}
	a := NewAdapter(common.OCRConfig{}, nil, WithEngineFactory(func(ctx context.Context) (Engine, error) {
		return eng, nil
	}))

	res, err := a.Recognize(context.Background(), "scan.jpg", []byte("img"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Text != "a b\nc" {
		t.Errorf("text = %q, want %q", res.Text, "a b\nc")
	}
}

func TestAdapterDispatchesPDF(t *testing.T) {
	eng := &stubEngine{result: entity.OCRResult{Text: "pdf text", Confidence: 75}}
	a := NewAdapter(common.OCRConfig{}, nil, WithEngineFactory(func(ctx context.Context) (Engine, error) {
		return eng, nil
	}))

	if _, err := a.Recognize(context.Background(), "statement.pdf", []byte("%PDF")); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if eng.pdfCalls != 1 || eng.imageCalls != 0 {
		t.Errorf("pdf=%d image=%d, want pdf path", eng.pdfCalls, eng.imageCalls)
	}
}

func TestAdapterEngineUnavailable(t *testing.T) {
	a := NewAdapter(common.OCRConfig{}, nil, WithEngineFactory(func(ctx context.Context) (Engine, error) {
		return nil, errors.New("no backend")
	}))

	_, err := a.Recognize(context.Background(), "scan.png", []byte("img"))
	if !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
	if err := a.Init(context.Background()); !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("Init err = %v, want ErrEngineUnavailable", err)
	}
}

func TestAdapterRecognitionFailure(t *testing.T) {
	eng := &stubEngine{err: errors.New("garbled input")}
	a := NewAdapter(common.OCRConfig{}, nil, WithEngineFactory(func(ctx context.Context) (Engine, error) {
		return eng, nil
	}))

	_, err := a.Recognize(context.Background(), "scan.png", []byte("img"))
	if !errors.Is(err, common.ErrRecognitionFailed) {
		t.Fatalf("err = %v, want ErrRecognitionFailed", err)
	}
}

func TestAdapterUnsupportedExtension(t *testing.T) {
	a := NewAdapter(common.OCRConfig{}, nil, WithEngineFactory(func(ctx context.Context) (Engine, error) {
		return &stubEngine{}, nil
	}))

	_, err := a.Recognize(context.Background(), "notes.txt", []byte("text"))
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
