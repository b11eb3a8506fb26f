// Package service contains the upload logic behind the information sheet.
//
// This file normalises rendered site plans before they are stored.
package service

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// DefaultPlanMaxDimension bounds the width and height of a stored plan.
const DefaultPlanMaxDimension = 2000

// =============================================================================
// Interface Definition
// =============================================================================

// PlanProcessor turns an uploaded plan image into the PNG that is stored.
type PlanProcessor interface {
	// Normalize decodes data, fits it within maxDim x maxDim preserving the
	// aspect ratio (never enlarging), and re-encodes it as PNG.
	// Returns the PNG bytes and the output width and height.
	Normalize(data io.Reader, maxDim int) ([]byte, int, int, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingProcessor implements PlanProcessor using the imaging library.
type imagingProcessor struct{}

// NewImagingProcessor creates a plan processor using the imaging library.
func NewImagingProcessor() PlanProcessor {
	return &imagingProcessor{}
}

func (p *imagingProcessor) Normalize(data io.Reader, maxDim int) ([]byte, int, int, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	if maxDim <= 0 {
		maxDim = DefaultPlanMaxDimension
	}
	fitted := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode plan: %w", err)
	}

	b := fitted.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}
