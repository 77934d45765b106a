// Package detect scores whether an input image looks like a receipt-shaped
// document and decides which corrective preprocessing is worth applying
// before OCR. Detection is best-effort: it never returns an error, a
// failure yields a zero-confidence non-receipt result.
package detect

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/docintake/internal/entity"
)

// Confidence weights per signal. They sum to 100 before quality bonuses.
const (
	weightReceiptShape = 30
	weightTextBlocks   = 25
	weightCurrency     = 20
	weightDatePattern  = 10
	weightTotalPattern = 10
	weightTextDensity  = 5

	qualityBonus = 5

	receiptLikeThreshold = 60
)

// Aspect ratio and quality bounds driving preprocessing decisions.
const (
	minAspectRatio = 0.5
	maxAspectRatio = 2.0
	minBrightness  = 0.3
	maxBrightness  = 0.8
	minContrast    = 0.3
	minSharpness   = 0.02
)

var (
	currencyRe = regexp.MustCompile(`[$€£¥]\s?\d`)
	dateRe     = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`)
	totalRe    = regexp.MustCompile(`(?i)\b(total|amount|balance|subtotal)\b`)
)

// TextSampler produces a quick, low-cost text sample from an image so the
// detector can score textual signals before the full OCR pass. May be nil,
// in which case only shape and quality signals contribute.
type TextSampler func(ctx context.Context, img []byte) (string, error)

// Detector analyzes raw image bytes.
type Detector struct {
	sampler TextSampler
	logger  *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithTextSampler wires a quick OCR pass into detection.
func WithTextSampler(s TextSampler) Option {
	return func(d *Detector) { d.sampler = s }
}

// WithLogger sets the detector's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector builds a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Detect assesses one image. It never fails: undecodable input produces a
// zero-confidence, non-receipt result.
func (d *Detector) Detect(ctx context.Context, imgBytes []byte) entity.DetectionResult {
	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		d.logger.Warn("detect.decode.failed", "error", err)
		return entity.DetectionResult{}
	}

	quality := MeasureQuality(img)
	needs := assessNeeds(quality)

	var text string
	if d.sampler != nil {
		text, err = d.sampler(ctx, imgBytes)
		if err != nil {
			d.logger.Warn("detect.sample.failed", "error", err)
			text = ""
		}
	}

	conf := scoreSignals(quality, text)
	res := entity.DetectionResult{
		IsReceiptLike: conf > receiptLikeThreshold,
		Confidence:    conf,
		Quality:       quality,
		Needs:         needs,
	}
	if needs.NeedsRotation {
		res.OrientationDegrees = 90
	}

	d.logger.Debug("detect.ok",
		"confidence", conf,
		"receipt_like", res.IsReceiptLike,
		"brightness", quality.Brightness,
		"contrast", quality.Contrast,
		"sharpness", quality.Sharpness)
	return res
}

// MeasureQuality computes normalized brightness, contrast and sharpness
// from the grayscale image.
func MeasureQuality(img image.Image) entity.ImageQuality {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return entity.ImageQuality{}
	}

	// Mean intensity.
	var sum float64
	n := float64(w * h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		for x := 0; x < w; x++ {
			sum += float64(row[x*4])
		}
	}
	mean := sum / n

	// Standard deviation and Laplacian edge energy in one pass.
	var varSum, lapSum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(gray.Pix[y*gray.Stride+x*4])
			dv := v - mean
			varSum += dv * dv
			if x > 0 && x < w-1 && y > 0 && y < h-1 {
				up := float64(gray.Pix[(y-1)*gray.Stride+x*4])
				down := float64(gray.Pix[(y+1)*gray.Stride+x*4])
				left := float64(gray.Pix[y*gray.Stride+(x-1)*4])
				right := float64(gray.Pix[y*gray.Stride+(x+1)*4])
				lapSum += math.Abs(up + down + left + right - 4*v)
			}
		}
	}
	stddev := math.Sqrt(varSum / n)

	inner := float64((w - 2) * (h - 2))
	var sharp float64
	if inner > 0 {
		sharp = lapSum / inner / 255.0
	}

	return entity.ImageQuality{
		Brightness: mean / 255.0,
		Contrast:   stddev / 128.0,
		Sharpness:  sharp,
		Width:      w,
		Height:     h,
	}
}

func assessNeeds(q entity.ImageQuality) entity.PreprocessingNeeds {
	aspect := aspectRatio(q.Width, q.Height)
	return entity.PreprocessingNeeds{
		NeedsRotation:   aspect < minAspectRatio || aspect > maxAspectRatio,
		NeedsBrightness: q.Brightness < minBrightness || q.Brightness > maxBrightness,
		NeedsContrast:   q.Contrast < minContrast,
	}
}

func aspectRatio(w, h int) float64 {
	if h == 0 {
		return 0
	}
	return float64(w) / float64(h)
}

// scoreSignals computes the weighted detection confidence. A score of 0
// means no signal fired at all.
func scoreSignals(q entity.ImageQuality, text string) int {
	score := 0

	aspect := aspectRatio(q.Width, q.Height)
	if aspect >= minAspectRatio && aspect <= maxAspectRatio {
		score += weightReceiptShape
	}

	lines := nonEmptyLines(text)
	if len(lines) >= 3 {
		score += weightTextBlocks
	}
	if currencyRe.MatchString(text) {
		score += weightCurrency
	}
	if dateRe.MatchString(text) {
		score += weightDatePattern
	}
	if totalRe.MatchString(text) {
		score += weightTotalPattern
	}
	if len(lines) > 0 && len(text)/len(lines) >= 8 {
		score += weightTextDensity
	}

	if score == 0 {
		return 0
	}

	if q.Contrast >= minContrast && q.Brightness >= minBrightness && q.Brightness <= maxBrightness {
		score += qualityBonus
	}
	if q.Sharpness >= minSharpness {
		score += qualityBonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			out = append(out, ln)
		}
	}
	return out
}
