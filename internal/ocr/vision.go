package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/docintake/internal/entity"
)

// maxVisionFileBytes is the inline-content limit for synchronous requests.
const maxVisionFileBytes = 20 * 1024 * 1024

// VisionEngine backs recognition with the Google Cloud Vision API.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine builds a client from environment credentials: inline
// GOOGLE_CREDENTIALS JSON first, then GOOGLE_APPLICATION_CREDENTIALS path,
// then application default credentials.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionEngine{client: client}, nil
}

func (v *VisionEngine) RecognizeImage(ctx context.Context, img []byte, lang string) (entity.OCRResult, error) {
	start := time.Now()
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{
				LanguageHints: languageHints(lang),
			},
		}},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return entity.OCRResult{}, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return entity.OCRResult{}, fmt.Errorf("vision: empty response")
	}
	ann := resp.Responses[0]
	if ann.Error != nil {
		return entity.OCRResult{}, fmt.Errorf("vision: %s", ann.Error.Message)
	}

	res := fromFullTextAnnotation(ann.FullTextAnnotation)
	res.Pages = 1
	res.Engine = "google-vision"
	res.Duration = time.Since(start)
	return res, nil
}

func (v *VisionEngine) RecognizePDF(ctx context.Context, pdf []byte, lang string) (entity.OCRResult, error) {
	start := time.Now()
	if len(pdf) > maxVisionFileBytes {
		return entity.OCRResult{}, fmt.Errorf("vision: pdf of %d bytes exceeds inline limit", len(pdf))
	}
	if len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
		return entity.OCRResult{}, fmt.Errorf("vision: missing pdf header")
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  pdf,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return entity.OCRResult{}, fmt.Errorf("vision annotate files: %w", err)
	}
	if len(resp.Responses) == 0 {
		return entity.OCRResult{}, fmt.Errorf("vision: empty response")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return entity.OCRResult{}, fmt.Errorf("vision: %s", fileResp.Error.Message)
	}

	var merged entity.OCRResult
	var b strings.Builder
	var confSum float64
	var confN int
	for i, page := range fileResp.Responses {
		if page.Error != nil {
			return entity.OCRResult{}, fmt.Errorf("vision page %d: %s", i+1, page.Error.Message)
		}
		pr := fromFullTextAnnotation(page.FullTextAnnotation)
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(pr.Text)
		merged.Words = append(merged.Words, pr.Words...)
		merged.Lines = append(merged.Lines, pr.Lines...)
		merged.Blocks = append(merged.Blocks, pr.Blocks...)
		if pr.Confidence > 0 {
			confSum += float64(pr.Confidence)
			confN++
		}
	}
	merged.Text = b.String()
	merged.Pages = len(fileResp.Responses)
	if confN > 0 {
		merged.Confidence = float32(confSum / float64(confN))
	}
	merged.Engine = "google-vision"
	merged.Duration = time.Since(start)
	return merged, nil
}

func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func languageHints(lang string) []string {
	if lang == "" || lang == "eng" {
		return nil
	}
	return []string{lang}
}

// fromFullTextAnnotation flattens the Vision page/block/paragraph/word
// hierarchy into the adapter's word, line and block structure. Vision has
// no explicit line level; paragraphs map to lines.
func fromFullTextAnnotation(ann *visionpb.TextAnnotation) entity.OCRResult {
	var res entity.OCRResult
	if ann == nil {
		return res
	}
	res.Text = ann.Text

	var confSum float64
	var confN int
	for _, page := range ann.Pages {
		for _, block := range page.Blocks {
			eb := entity.Block{Box: polyBox(block.BoundingBox)}
			var blockText []string
			for _, para := range block.Paragraphs {
				el := entity.Line{Box: polyBox(para.BoundingBox)}
				var lineWords []string
				var lineConfSum float64
				for _, word := range para.Words {
					var wb strings.Builder
					for _, sym := range word.Symbols {
						wb.WriteString(sym.Text)
					}
					w := entity.Word{
						Text:       wb.String(),
						Confidence: word.Confidence * 100,
						Box:        polyBox(word.BoundingBox),
					}
					el.Words = append(el.Words, w)
					res.Words = append(res.Words, w)
					lineWords = append(lineWords, w.Text)
					lineConfSum += float64(w.Confidence)
					confSum += float64(w.Confidence)
					confN++
				}
				el.Text = strings.Join(lineWords, " ")
				if n := len(el.Words); n > 0 {
					el.Confidence = float32(lineConfSum / float64(n))
				}
				eb.Lines = append(eb.Lines, el)
				res.Lines = append(res.Lines, el)
				blockText = append(blockText, el.Text)
			}
			eb.Text = strings.Join(blockText, "\n")
			res.Blocks = append(res.Blocks, eb)
		}
	}
	if confN > 0 {
		res.Confidence = float32(confSum / float64(confN))
	}
	return res
}

func polyBox(poly *visionpb.BoundingPoly) entity.BoundingBox {
	var box entity.BoundingBox
	if poly == nil || len(poly.Vertices) == 0 {
		return box
	}
	box.X0, box.Y0 = int(poly.Vertices[0].X), int(poly.Vertices[0].Y)
	box.X1, box.Y1 = box.X0, box.Y0
	for _, v := range poly.Vertices[1:] {
		x, y := int(v.X), int(v.Y)
		if x < box.X0 {
			box.X0 = x
		}
		if y < box.Y0 {
			box.Y0 = y
		}
		if x > box.X1 {
			box.X1 = x
		}
		if y > box.Y1 {
			box.Y1 = y
		}
	}
	return box
}
