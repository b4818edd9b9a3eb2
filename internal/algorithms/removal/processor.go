package removal

import (
	"context"
	"fmt"

	"demarcation-eraser/internal/demarcation"
	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/conversion"
	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const Name = "Demarcation Removal"

// Processor erases demarcation marks and returns the cleaned grayscale page.
type Processor struct {
	name   string
	logger logger.Logger
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{
		name:   Name,
		logger: logger.OrNop(log),
	}
}

func (p *Processor) GetName() string {
	return p.name
}

func (p *Processor) GetDefaultParameters() map[string]interface{} {
	return demarcation.DefaultParams().Map()
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
	if err := safe.ValidateMatForOperation(input, "demarcation removal"); err != nil {
		return nil, err
	}

	parsed, err := demarcation.ParamsFromMap(params)
	if err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	remover, err := demarcation.NewRemover(parsed, p.logger)
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

	var result demarcation.Result
	err = gray.Borrow(func(mat *gocv.Mat) error {
		var removeErr error
		result, removeErr = remover.Remove(mat)
		return removeErr
	})
	if err != nil {
		gray.Close()
		return nil, fmt.Errorf("demarcation removal failed: %w", err)
	}

	select {
	case <-ctx.Done():
		gray.Close()
		return nil, ctx.Err()
	default:
	}

	p.logger.Info("DemarcationRemoval", "demarcation removed", map[string]interface{}{
		"first_pass_erased":  result.FirstPass.Erased,
		"second_pass_erased": result.SecondPass.Erased,
		"contours":           result.FirstPass.Contours,
		"otsu_threshold":     result.FirstPass.Threshold,
	})

	return gray, nil
}
