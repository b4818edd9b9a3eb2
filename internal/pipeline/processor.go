package pipeline

import (
	"context"
	"errors"
	"fmt"

	"demarcation-eraser/internal/algorithms"
	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/bridge"
	"demarcation-eraser/internal/opencv/memory"
	"demarcation-eraser/internal/opencv/safe"
)

var errNilResult = errors.New("algorithm returned no result")

type imageProcessor struct {
	memoryManager *memory.Manager
	logger        logger.Logger
}

func (p *imageProcessor) Apply(ctx context.Context, input *ImageData, algorithm algorithms.Algorithm, params map[string]interface{}) (*ImageData, error) {
	if input == nil {
		return nil, ErrNoImage
	}
	if err := safe.ValidateMatForOperation(input.Mat, "Apply"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := run(ctx, algorithm, input.Mat, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", algorithm.GetName(), err)
	}

	img, err := bridge.MatToImage(result)
	if err != nil {
		p.memoryManager.ReleaseMat(result, "processing_result")
		return nil, fmt.Errorf("result conversion: %w", err)
	}

	output := &ImageData{
		Image:    img,
		Mat:      result,
		Width:    result.Cols(),
		Height:   result.Rows(),
		Channels: result.Channels(),
		Format:   input.Format,
		Path:     input.Path,
	}

	p.logger.Debug("ImageProcessor", "algorithm applied", map[string]interface{}{
		"algorithm": algorithm.GetName(),
		"size":      fmt.Sprintf("%dx%d", output.Width, output.Height),
		"channels":  output.Channels,
	})
	return output, nil
}

// run prefers the cancellable entry point when the algorithm has one.
func run(ctx context.Context, algorithm algorithms.Algorithm, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	var (
		result *safe.Mat
		err    error
	)
	if contextual, ok := algorithm.(algorithms.ContextualAlgorithm); ok {
		result, err = contextual.ProcessWithContext(ctx, input, params)
	} else {
		result, err = algorithm.Process(input, params)
	}
	if err == nil && result == nil {
		err = errNilResult
	}
	return result, err
}
