package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubRunner replays canned output keyed by binary name.
type stubRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name)
	if err, ok := s.errs[name]; ok {
		return nil, []byte("boom"), err
	}
	return []byte(s.outputs[name]), nil, nil
}

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	600	800	-1
5	1	1	1	1	1	10	10	80	20	96	STORE
5	1	1	1	1	2	100	10	60	20	94	MART
5	1	1	1	2	1	10	40	50	20	91	Total:
5	1	1	1	2	2	70	40	60	20	89	$25.50
`

func TestParseTSVStructure(t *testing.T) {
	res := parseTSV(sampleTSV)

	if len(res.Words) != 4 {
		t.Fatalf("words = %d, want 4", len(res.Words))
	}
	if len(res.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(res.Lines))
	}
	if res.Lines[0].Text != "STORE MART" {
		t.Errorf("line 0 = %q, want %q", res.Lines[0].Text, "STORE MART")
	}
	if res.Lines[1].Text != "Total: $25.50" {
		t.Errorf("line 1 = %q, want %q", res.Lines[1].Text, "Total: $25.50")
	}
	if res.Text != "STORE MART\nTotal: $25.50" {
		t.Errorf("text = %q", res.Text)
	}
	// mean of 96, 94, 91, 89
	if res.Confidence < 92 || res.Confidence > 93 {
		t.Errorf("confidence = %.2f, want 92.5", res.Confidence)
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(res.Blocks))
	}
	box := res.Words[0].Box
	if box.X0 != 10 || box.Y0 != 10 || box.X1 != 90 || box.Y1 != 30 {
		t.Errorf("word box = %+v", box)
	}
}

func TestRecognizeImageViaStub(t *testing.T) {
	r := &stubRunner{outputs: map[string]string{"tesseract": sampleTSV}}
	eng := NewTesseractEngine(TesseractConfig{}, nil).WithRunner(r)

	res, err := eng.RecognizeImage(context.Background(), []byte("fake-png"), "eng")
	if err != nil {
		t.Fatalf("RecognizeImage: %v", err)
	}
	if res.Pages != 1 {
		t.Errorf("pages = %d, want 1", res.Pages)
	}
	if res.Engine != "tesseract" {
		t.Errorf("engine = %q", res.Engine)
	}
	if !strings.Contains(res.Text, "Total: $25.50") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestRecognizePDFUsesTextLayer(t *testing.T) {
	longText := "INVOICE #4821\nAcme Corp\nTotal: $1,204.00\nDue: 09/15/2026\nThank you for your business"
	r := &stubRunner{outputs: map[string]string{"pdftotext": longText}}
	eng := NewTesseractEngine(TesseractConfig{}, nil).WithRunner(r)

	res, err := eng.RecognizePDF(context.Background(), []byte("%PDF-1.4"), "eng")
	if err != nil {
		t.Fatalf("RecognizePDF: %v", err)
	}
	if res.Engine != "pdftotext" {
		t.Errorf("engine = %q, want pdftotext", res.Engine)
	}
	if res.Confidence == 0 {
		t.Error("text-layer extraction should carry a heuristic confidence")
	}
	for _, call := range r.calls {
		if call == "pdftoppm" {
			t.Error("pdftoppm must not run when the text layer suffices")
		}
	}
}

func TestRecognizePDFFallsBackToRaster(t *testing.T) {
	// Near-empty text layer forces rasterization; pdftoppm then renders
	// nothing, which is an error.
	r := &stubRunner{outputs: map[string]string{"pdftotext": "  \n "}}
	eng := NewTesseractEngine(TesseractConfig{}, nil).WithRunner(r)

	_, err := eng.RecognizePDF(context.Background(), []byte("%PDF-1.4"), "eng")
	if err == nil {
		t.Fatal("expected error when no pages render")
	}
	var sawPpm bool
	for _, call := range r.calls {
		if call == "pdftoppm" {
			sawPpm = true
		}
	}
	if !sawPpm {
		t.Error("expected pdftoppm fallback for a textless pdf")
	}
}

func TestRecognizeImageCommandFailure(t *testing.T) {
	r := &stubRunner{errs: map[string]error{"tesseract": errors.New("exit status 1")}}
	eng := NewTesseractEngine(TesseractConfig{}, nil).WithRunner(r)

	if _, err := eng.RecognizeImage(context.Background(), []byte("x"), "eng"); err == nil {
		t.Fatal("expected error from failing tesseract")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\r\nb", "a\nb"},
		{"a\t\tb", "a b"},
		{"a    b", "a b"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"a \n----\nb", "a\n\nb"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
