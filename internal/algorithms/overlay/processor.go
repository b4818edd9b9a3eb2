package overlay

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"demarcation-eraser/internal/demarcation"
	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/conversion"
	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const Name = "Classification Overlay"

var (
	DemarcationColor = color.RGBA{G: 255, A: 255}
	KamatzColor      = color.RGBA{R: 255, A: 255}
)

// Processor paints what the removal would erase onto a color copy of the
// page: first pass marks in green, kamatz shapes in red.
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
	if err := safe.ValidateMatForOperation(input, "classification overlay"); err != nil {
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

	gray, err := conversion.ConvertToGrayscale(input)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to grayscale: %w", err)
	}
	defer gray.Close()

	classification, err := remover.Classify(gray.GetMat())
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	canvas, err := conversion.ConvertToBGR(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to BGR: %w", err)
	}

	err = canvas.Borrow(func(mat *gocv.Mat) error {
		paint(mat, classification.Demarcation, DemarcationColor)
		paint(mat, classification.Kamatz, KamatzColor)
		return nil
	})
	if err != nil {
		canvas.Close()
		return nil, err
	}

	p.logger.Info("ClassificationOverlay", "classification drawn", map[string]interface{}{
		"demarcation": len(classification.Demarcation),
		"kamatz":      len(classification.Kamatz),
	})

	return canvas, nil
}

func paint(mat *gocv.Mat, contours [][]image.Point, c color.RGBA) {
	if len(contours) == 0 {
		return
	}

	points := gocv.NewPointsVectorFromPoints(contours)
	defer points.Close()

	gocv.DrawContours(mat, points, -1, c, -1)
}
