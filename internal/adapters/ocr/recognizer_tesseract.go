//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Recognizer implements ports.Recognizer with a gosseract client.
// The client is not safe for concurrent use, so calls are serialized.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a recognizer configured for single-line plate text.
func New(cfg Config) (*Recognizer, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	return &Recognizer{client: client}, nil
}

// Recognize reads the text inside region.
func (r *Recognizer) Recognize(ctx context.Context, frame domain.Frame, region domain.Region) (domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return domain.Candidate{}, err
	}
	img, err := cropPNG(frame, region)
	if err != nil {
		return domain.Candidate{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(img); err != nil {
		return domain.Candidate{}, fmt.Errorf("set ocr image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("extract text: %w", err)
	}

	var scores []float64
	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil {
		scores = make([]float64, 0, len(boxes))
		for _, box := range boxes {
			scores = append(scores, box.Confidence)
		}
	}

	return domain.Candidate{
		Text:       strings.TrimSpace(text),
		Confidence: averageConfidence(scores),
	}, nil
}

// Close releases the Tesseract client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
