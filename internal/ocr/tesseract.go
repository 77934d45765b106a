package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/internal/entity"
)

// minPDFTextChars is the cutoff below which a PDF's text layer is treated
// as absent and the document is rasterized for OCR instead.
const minPDFTextChars = 32

// TesseractConfig configures the exec-based engine.
type TesseractConfig struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftotext string // if empty -> "pdftotext"
	Pdftoppm  string // if empty -> "pdftoppm"

	TessdataDir string
	DPI         int // rasterization DPI for scanned PDFs, default 300
	MaxPages    int // 0 = no limit

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// TesseractEngine shells out to tesseract and the poppler tools. Safe for
// concurrent use: every call works on its own temp files.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseractEngine builds an engine with defaulted binaries.
func NewTesseractEngine(cfg TesseractConfig, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &TesseractEngine{cfg: cfg, runner: newExecRunner(logger), logger: logger}
}

// WithRunner swaps the command runner. Used by tests.
func (e *TesseractEngine) WithRunner(r Runner) *TesseractEngine {
	e.runner = r
	return e
}

func (e *TesseractEngine) RecognizeImage(ctx context.Context, img []byte, lang string) (entity.OCRResult, error) {
	start := time.Now()
	path, cleanup, err := writeTemp(img, "docintake-ocr-*.png")
	if err != nil {
		return entity.OCRResult{}, err
	}
	defer cleanup()

	res, err := e.recognizePath(ctx, path, lang)
	if err != nil {
		return entity.OCRResult{}, err
	}
	res.Pages = 1
	res.Engine = "tesseract"
	res.Duration = time.Since(start)
	return res, nil
}

func (e *TesseractEngine) RecognizePDF(ctx context.Context, pdf []byte, lang string) (entity.OCRResult, error) {
	start := time.Now()
	path, cleanup, err := writeTemp(pdf, "docintake-ocr-*.pdf")
	if err != nil {
		return entity.OCRResult{}, err
	}
	defer cleanup()

	// Text-layer extraction first; rasterize only when the layer is missing.
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err == nil {
		text := string(out)
		if len(strings.TrimSpace(text)) >= minPDFTextChars {
			return entity.OCRResult{
				Text:       text,
				Confidence: heuristicConfidence(text),
				Pages:      1 + strings.Count(text, "\f"),
				Engine:     "pdftotext",
				Duration:   time.Since(start),
			}, nil
		}
	} else {
		e.logger.Warn("ocr.pdftotext.failed", "error", err)
	}

	res, err := e.pdfRasterOCR(ctx, path, lang)
	if err != nil {
		return entity.OCRResult{}, err
	}
	res.Engine = "tesseract"
	res.Duration = time.Since(start)
	return res, nil
}

// Close is a no-op: there is no persistent backend handle to release.
func (e *TesseractEngine) Close() error { return nil }

// recognizePath runs tesseract in TSV mode and rebuilds text plus word,
// line and block structure from the table.
func (e *TesseractEngine) recognizePath(ctx context.Context, path, lang string) (entity.OCRResult, error) {
	if lang == "" {
		lang = "eng"
	}
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return entity.OCRResult{}, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 1<<10))
	}
	return parseTSV(string(out)), nil
}

func (e *TesseractEngine) pdfRasterOCR(ctx context.Context, path, lang string) (entity.OCRResult, error) {
	tmpDir, err := os.MkdirTemp("", "docintake-pp-*")
	if err != nil {
		return entity.OCRResult{}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmpdir.remove.failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return entity.OCRResult{}, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 1<<10))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return entity.OCRResult{}, fmt.Errorf("pdftoppm rendered no pages")
	}

	var merged entity.OCRResult
	var b strings.Builder
	var confSum float64
	var confN int
	for _, img := range matches {
		page, err := e.recognizePath(ctx, img, lang)
		if err != nil {
			e.logger.Warn("ocr.pdf.page.failed", "page", img, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(page.Text)
		merged.Words = append(merged.Words, page.Words...)
		merged.Lines = append(merged.Lines, page.Lines...)
		merged.Blocks = append(merged.Blocks, page.Blocks...)
		if page.Confidence > 0 {
			confSum += float64(page.Confidence)
			confN++
		}
	}
	merged.Text = b.String()
	merged.Pages = len(matches)
	if confN > 0 {
		merged.Confidence = float32(confSum / float64(confN))
	}
	return merged, nil
}

// parseTSV consumes tesseract's 12-column TSV output. Level 5 rows are
// words; line and block grouping follows the block/par/line number columns.
func parseTSV(out string) entity.OCRResult {
	type lineKey struct{ page, block, par, line int }

	var res entity.OCRResult
	lineIdx := make(map[lineKey]int)
	blockIdx := make(map[int]int)

	var confSum float64
	var confN int

	rows := strings.Split(out, "\n")
	for i, row := range rows {
		if i == 0 || strings.TrimSpace(row) == "" {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		level, _ := strconv.Atoi(cols[0])
		if level != 5 {
			continue
		}
		page, _ := strconv.Atoi(cols[1])
		block, _ := strconv.Atoi(cols[2])
		par, _ := strconv.Atoi(cols[3])
		line, _ := strconv.Atoi(cols[4])
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		text := strings.Join(cols[11:], "\t")
		if strings.TrimSpace(text) == "" {
			continue
		}

		var conf float64
		if cols[10] != "" && cols[10] != "-1" {
			conf, _ = strconv.ParseFloat(cols[10], 64)
			confSum += conf
			confN++
		}

		word := entity.Word{
			Text:       text,
			Confidence: float32(conf),
			Box: entity.BoundingBox{
				X0: left, Y0: top,
				X1: left + width, Y1: top + height,
			},
		}
		res.Words = append(res.Words, word)

		lk := lineKey{page, block, par, line}
		li, ok := lineIdx[lk]
		if !ok {
			li = len(res.Lines)
			lineIdx[lk] = li
			res.Lines = append(res.Lines, entity.Line{Box: word.Box})
		}
		ln := &res.Lines[li]
		if ln.Text != "" {
			ln.Text += " "
		}
		ln.Text += text
		ln.Words = append(ln.Words, word)
		ln.Box = unionBox(ln.Box, word.Box)

		bi, ok := blockIdx[block]
		if !ok {
			bi = len(res.Blocks)
			blockIdx[block] = bi
			res.Blocks = append(res.Blocks, entity.Block{Box: word.Box})
		}
		res.Blocks[bi].Box = unionBox(res.Blocks[bi].Box, word.Box)
	}

	// Line-level confidence and block assembly.
	for i := range res.Lines {
		var s float64
		for _, w := range res.Lines[i].Words {
			s += float64(w.Confidence)
		}
		if n := len(res.Lines[i].Words); n > 0 {
			res.Lines[i].Confidence = float32(s / float64(n))
		}
	}
	var b strings.Builder
	for i, ln := range res.Lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ln.Text)
	}
	res.Text = b.String()
	for i := range res.Blocks {
		var bt []string
		for _, ln := range res.Lines {
			if boxContains(res.Blocks[i].Box, ln.Box) {
				bt = append(bt, ln.Text)
				res.Blocks[i].Lines = append(res.Blocks[i].Lines, ln)
			}
		}
		res.Blocks[i].Text = strings.Join(bt, "\n")
	}

	if confN > 0 {
		res.Confidence = float32(confSum / float64(confN))
	}
	return res
}

func unionBox(a, b entity.BoundingBox) entity.BoundingBox {
	if b.X0 < a.X0 {
		a.X0 = b.X0
	}
	if b.Y0 < a.Y0 {
		a.Y0 = b.Y0
	}
	if b.X1 > a.X1 {
		a.X1 = b.X1
	}
	if b.Y1 > a.Y1 {
		a.Y1 = b.Y1
	}
	return a
}

func boxContains(outer, inner entity.BoundingBox) bool {
	return inner.X0 >= outer.X0 && inner.Y0 >= outer.Y0 &&
		inner.X1 <= outer.X1 && inner.Y1 <= outer.Y1
}

func writeTemp(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
