package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	"demarcation-eraser/internal/algorithms"
	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/metrics"
	"demarcation-eraser/internal/opencv/memory"
	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

var (
	ErrNoImage      = errors.New("no image loaded")
	ErrNotProcessed = errors.New("no processed image")
)

// ImageProcessor applies one algorithm to a loaded image and returns a new
// ImageData; the input is never modified.
type ImageProcessor interface {
	Apply(ctx context.Context, input *ImageData, algorithm algorithms.Algorithm, params map[string]interface{}) (*ImageData, error)
}

type ImageLoader interface {
	LoadFromPath(path string) (*ImageData, error)
	LoadFromBytes(data []byte, format string) (*ImageData, error)
}

type ImageSaver interface {
	SaveToWriter(writer io.Writer, imageData *ImageData, format string) error
	SaveToPath(path string, imageData *ImageData) error
}

type ImageData struct {
	Image    image.Image
	Mat      *safe.Mat
	Width    int
	Height   int
	Channels int
	Format   string
	Path     string
}

// Coordinator holds one source page and its latest processed result.
type Coordinator struct {
	mu               sync.RWMutex
	originalImage    *ImageData
	processedImage   *ImageData
	memoryManager    *memory.Manager
	logger           logger.Logger
	algorithmManager *algorithms.Manager
	loader           ImageLoader
	processor        ImageProcessor
	saver            ImageSaver
	ctx              context.Context
	cancel           context.CancelFunc
}

func NewCoordinator(memMgr *memory.Manager, log logger.Logger) *Coordinator {
	log = logger.OrNop(log)
	algMgr := algorithms.NewManager(log)
	ctx, cancel := context.WithCancel(context.Background())

	coord := &Coordinator{
		memoryManager:    memMgr,
		logger:           log,
		algorithmManager: algMgr,
		ctx:              ctx,
		cancel:           cancel,
	}

	coord.loader = &imageLoader{
		memoryManager: memMgr,
		logger:        log,
	}

	coord.processor = &imageProcessor{
		memoryManager: memMgr,
		logger:        log,
	}

	coord.saver = &imageSaver{
		logger: log,
	}

	log.Debug("PipelineCoordinator", "initialized", nil)
	return coord
}

func (c *Coordinator) Algorithms() *algorithms.Manager {
	return c.algorithmManager
}

func (c *Coordinator) LoadImage(path string) (*ImageData, error) {
	return c.load(func() (*ImageData, error) {
		return c.loader.LoadFromPath(path)
	})
}

func (c *Coordinator) LoadBytes(data []byte, format string) (*ImageData, error) {
	return c.load(func() (*ImageData, error) {
		return c.loader.LoadFromBytes(data, format)
	})
}

func (c *Coordinator) load(fn func() (*ImageData, error)) (*ImageData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	imageData, err := fn()
	if err != nil {
		c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
			"operation": "load_image",
		})
		return nil, err
	}

	c.releaseImages()
	c.originalImage = imageData

	c.logger.Info("PipelineCoordinator", "image loaded", map[string]interface{}{
		"path":      imageData.Path,
		"width":     imageData.Width,
		"height":    imageData.Height,
		"channels":  imageData.Channels,
		"format":    imageData.Format,
		"load_time": time.Since(start),
	})

	return imageData, nil
}

func (c *Coordinator) ProcessImage(algorithmName string, params map[string]interface{}) (*ImageData, error) {
	return c.ProcessImageWithContext(c.ctx, algorithmName, params)
}

// ProcessImageWithContext runs the named algorithm on the loaded image. Nil
// params use the values stored in the algorithm manager.
func (c *Coordinator) ProcessImageWithContext(ctx context.Context, algorithmName string, params map[string]interface{}) (*ImageData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.originalImage == nil {
		return nil, ErrNoImage
	}

	algorithm, err := c.algorithmManager.GetAlgorithm(algorithmName)
	if err != nil {
		c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
			"algorithm": algorithmName,
		})
		return nil, fmt.Errorf("failed to get algorithm: %w", err)
	}

	if params == nil {
		params = c.algorithmManager.GetParameters(algorithm.GetName())
	}

	start := time.Now()
	processedData, err := c.processor.Apply(ctx, c.originalImage, algorithm, params)
	if err != nil {
		c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
			"algorithm": algorithm.GetName(),
			"path":      c.originalImage.Path,
		})
		return nil, err
	}

	if c.processedImage != nil {
		c.memoryManager.ReleaseMat(c.processedImage.Mat, "processed_image")
	}
	c.processedImage = processedData

	c.logger.Info("PipelineCoordinator", "image processed", map[string]interface{}{
		"algorithm":       algorithm.GetName(),
		"path":            c.originalImage.Path,
		"processing_time": time.Since(start),
	})

	return processedData, nil
}

func (c *Coordinator) SaveImage(path string) error {
	processed := c.GetProcessedImage()
	if processed == nil {
		return ErrNotProcessed
	}

	start := time.Now()
	if err := c.saver.SaveToPath(path, processed); err != nil {
		c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
			"operation": "save_image",
			"path":      path,
		})
		return err
	}

	c.logger.Info("PipelineCoordinator", "image saved", map[string]interface{}{
		"path":      path,
		"save_time": time.Since(start),
	})

	return nil
}

func (c *Coordinator) SaveImageToWriter(writer io.Writer, format string) error {
	processed := c.GetProcessedImage()
	if processed == nil {
		return ErrNotProcessed
	}

	if err := c.saver.SaveToWriter(writer, processed, strings.ToLower(format)); err != nil {
		c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
			"operation": "save_image_with_format",
			"format":    format,
		})
		return err
	}

	return nil
}

// Evaluate scores the processed image against the loaded original. truth
// may be nil.
func (c *Coordinator) Evaluate(truth *ImageData) (*metrics.ErasureMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.originalImage == nil {
		return nil, ErrNoImage
	}
	if c.processedImage == nil {
		return nil, ErrNotProcessed
	}

	var truthMat gocv.Mat
	if truth != nil {
		if err := safe.ValidateMatForOperation(truth.Mat, "truth"); err != nil {
			return nil, err
		}
		truthMat = truth.Mat.GetMat()
	} else {
		none := gocv.NewMat()
		defer none.Close()
		truthMat = none
	}

	result, err := metrics.CompareErasure(c.originalImage.Mat.GetMat(), c.processedImage.Mat.GetMat(), truthMat)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	c.logger.Info("PipelineCoordinator", "image evaluated", result.Fields())
	return result, nil
}

func (c *Coordinator) GetOriginalImage() *ImageData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.originalImage
}

func (c *Coordinator) GetProcessedImage() *ImageData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processedImage
}

func (c *Coordinator) Context() context.Context {
	return c.ctx
}

func (c *Coordinator) Cancel() {
	c.cancel()
}

func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()
	c.releaseImages()

	c.logger.Debug("PipelineCoordinator", "shutdown completed", nil)
}

func (c *Coordinator) releaseImages() {
	if c.originalImage != nil {
		c.memoryManager.ReleaseMat(c.originalImage.Mat, "original_image")
		c.originalImage = nil
	}

	if c.processedImage != nil {
		c.memoryManager.ReleaseMat(c.processedImage.Mat, "processed_image")
		c.processedImage = nil
	}
}
