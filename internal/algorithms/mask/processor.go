package mask

import (
	"context"
	"fmt"

	"demarcation-eraser/internal/demarcation"
	"demarcation-eraser/internal/opencv/conversion"
	"demarcation-eraser/internal/opencv/safe"
)

const Name = "Otsu Mask"

// Processor returns the inverted Otsu mask the removal pipeline traces
// contours on. Useful for checking the blur setting against a font.
type Processor struct {
	name string
}

func NewProcessor() *Processor {
	return &Processor{name: Name}
}

func (p *Processor) GetName() string {
	return p.name
}

func (p *Processor) GetDefaultParameters() map[string]interface{} {
	defaults := demarcation.DefaultParams()
	return map[string]interface{}{
		"blur":        defaults.Blur,
		"blur_kernel": defaults.BlurKernel,
	}
}

func (p *Processor) ValidateParameters(params map[string]interface{}) error {
	parsed, err := demarcation.ParamsFromMap(params)
	if err != nil {
		return err
	}
	return parsed.Validate()
}

func (p *Processor) Process(input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	return p.ProcessWithContext(context.Background(), input, params)
}

func (p *Processor) ProcessWithContext(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "Otsu mask"); err != nil {
		return nil, err
	}

	parsed, err := demarcation.ParamsFromMap(params)
	if err == nil {
		err = parsed.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	gray, err := conversion.ConvertToGrayscale(input)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to grayscale: %w", err)
	}
	defer gray.Close()

	binary, err := demarcation.Binarize(gray.GetMat(), parsed)
	if err != nil {
		return nil, fmt.Errorf("binarization failed: %w", err)
	}

	result, err := safe.AdoptWithTracker(binary.Mask, input.Tracker(), "otsu_mask")
	if err != nil {
		binary.Close()
		return nil, err
	}
	return result, nil
}
