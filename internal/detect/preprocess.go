package detect

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// maxOCREdge is the long-edge cap applied before recognition. Larger
// inputs slow the engine down without improving accuracy.
const maxOCREdge = 2000

// binarizeThreshold separates ink from paper on thermal receipt scans.
const binarizeThreshold = 160

// ApplyCorrections applies the corrections detection asked for and returns
// re-encoded PNG bytes. Unknown or undecodable input is returned unchanged.
func ApplyCorrections(imgBytes []byte, needs entity.PreprocessingNeeds, quality entity.ImageQuality) ([]byte, error) {
	if !needs.NeedsRotation && !needs.NeedsBrightness && !needs.NeedsContrast {
		return imgBytes, nil
	}
	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, common.WrapError(err, "decode image for correction")
	}

	if needs.NeedsRotation {
		img = imaging.Rotate90(img)
	}
	if needs.NeedsBrightness {
		// Lift dark scans, pull down blown-out ones.
		if quality.Brightness < minBrightness {
			img = imaging.AdjustBrightness(img, 25)
		} else {
			img = imaging.AdjustBrightness(img, -15)
		}
	}
	if needs.NeedsContrast {
		img = imaging.AdjustContrast(img, 30)
	}

	return encodePNG(img)
}

// PrepareForOCR applies the per-type recognition pre-pass: receipts get a
// hard binarization, invoices a gentle brightness lift, everything else a
// linear contrast stretch. All paths downscale to the OCR edge cap.
func PrepareForOCR(imgBytes []byte, docType constants.DocumentType) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, common.WrapError(err, "decode image for ocr prepass")
	}

	img = downscale(img)

	switch docType {
	case constants.Receipt:
		img = binarize(imaging.Grayscale(img), binarizeThreshold)
	case constants.Invoice:
		img = imaging.AdjustBrightness(img, 10)
		img = imaging.AdjustSaturation(img, -20)
	default:
		img = imaging.Grayscale(img)
		img = imaging.AdjustContrast(img, 20)
	}

	img = imaging.Sharpen(img, 0.5)
	return encodePNG(img)
}

func downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxOCREdge && h <= maxOCREdge {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxOCREdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxOCREdge, imaging.Lanczos)
}

func binarize(gray *image.NRGBA, threshold uint8) *image.NRGBA {
	b := gray.Bounds()
	out := imaging.Clone(gray)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.NRGBAAt(x, y)
			v := uint8(0)
			if c.R > threshold {
				v = 255
			}
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// Thumbnail renders a bounded JPEG preview of the input image.
func Thumbnail(imgBytes []byte, maxEdge int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, common.WrapError(err, "decode image for thumbnail")
	}
	thumb := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, common.WrapError(err, "encode thumbnail")
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, common.WrapError(err, "encode image")
	}
	return buf.Bytes(), nil
}
