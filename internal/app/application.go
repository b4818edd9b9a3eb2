package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"demarcation-eraser/internal/algorithms"
	"demarcation-eraser/internal/config"
	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/metrics"
	"demarcation-eraser/internal/opencv/memory"
	"demarcation-eraser/internal/pipeline"
)

const (
	AppName    = "demarcation-eraser"
	AppVersion = "1.0.0"
)

const shutdownTimeout = 10 * time.Second

type shutdownHandler interface {
	Shutdown()
}

// Application owns the long-lived pieces of a run: logger, memory manager
// and the cancellation context that a signal fires.
type Application struct {
	config        config.Config
	registry      *algorithms.Manager
	memoryManager *memory.Manager
	logger        logger.Logger
	shutdownables []shutdownHandler
	ctx           context.Context
	cancel        context.CancelFunc
	shutdown      chan struct{}
	mu            sync.Mutex
}

func NewApplication(cfg config.Config, log logger.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log = logger.OrNop(log)

	registry := algorithms.NewManager(log)
	if err := registry.SetParameters(cfg.Algorithm, cfg.Params()); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	memoryManager := memory.NewManager(log)

	application := &Application{
		config:        cfg,
		registry:      registry,
		memoryManager: memoryManager,
		logger:        log,
		ctx:           ctx,
		cancel:        cancel,
		shutdown:      make(chan struct{}),
		shutdownables: []shutdownHandler{
			memoryManager,
		},
	}

	log.Debug("Application", "initialization complete", map[string]interface{}{
		"version":   AppVersion,
		"algorithm": cfg.Algorithm,
	})
	return application, nil
}

func (a *Application) Context() context.Context {
	return a.ctx
}

func (a *Application) Config() config.Config {
	return a.config
}

// Algorithms lists the registered processors by display name.
func (a *Application) Algorithms() []string {
	return a.registry.GetAvailableAlgorithms()
}

// SetParameters overrides parameters of the configured algorithm. The
// merged set is validated before any value is kept.
func (a *Application) SetParameters(values map[string]interface{}) error {
	return a.registry.SetParameters(a.config.Algorithm, values)
}

func (a *Application) params() map[string]interface{} {
	return a.registry.GetParameters(a.config.Algorithm)
}

// HandleSignals cancels the run on SIGINT or SIGTERM.
func (a *Application) HandleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			a.logger.Info("Application", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			a.cancel()
		case <-a.shutdown:
		}
	}()
}

// Remove cleans one page and writes it to output. With preview set the
// result is shown in a window until a key is pressed.
func (a *Application) Remove(input, output string, preview bool) error {
	coord := a.newCoordinator()
	defer coord.Shutdown()

	if _, err := coord.LoadImage(input); err != nil {
		return err
	}

	processed, err := coord.ProcessImageWithContext(a.ctx, a.config.Algorithm, a.params())
	if err != nil {
		return err
	}

	if err := coord.SaveImage(output); err != nil {
		return err
	}

	if preview {
		return showPreview(fmt.Sprintf("%s: %s", AppName, output), processed.Mat)
	}
	return nil
}

// Batch cleans every input. An empty prefix or zero jobs falls back to the
// config values.
func (a *Application) Batch(inputs []string, outDir, prefix string, jobs int) (*pipeline.BatchSummary, error) {
	workers := jobs
	if workers <= 0 {
		workers = a.config.Workers
	}
	if prefix == "" {
		prefix = a.config.Prefix
	}

	return pipeline.Batch(a.ctx, a.memoryManager, a.logger, inputs, pipeline.BatchOptions{
		OutDir:    outDir,
		Prefix:    prefix,
		Format:    a.config.OutputFormat,
		Workers:   workers,
		Algorithm: a.config.Algorithm,
		Params:    a.params(),
	})
}

// Evaluate runs the configured algorithm on input in memory and scores it
// against truth, the hand-cleaned page. An empty truth only counts erasures.
func (a *Application) Evaluate(input, truth string) (*metrics.ErasureMetrics, error) {
	coord := a.newCoordinator()
	defer coord.Shutdown()

	if _, err := coord.LoadImage(input); err != nil {
		return nil, err
	}

	if _, err := coord.ProcessImageWithContext(a.ctx, a.config.Algorithm, a.params()); err != nil {
		return nil, err
	}

	if truth == "" {
		return coord.Evaluate(nil)
	}

	truthCoord := a.newCoordinator()
	defer truthCoord.Shutdown()

	truthData, err := truthCoord.LoadImage(truth)
	if err != nil {
		return nil, fmt.Errorf("truth: %w", err)
	}

	return coord.Evaluate(truthData)
}

func (a *Application) newCoordinator() *pipeline.Coordinator {
	return pipeline.NewCoordinator(a.memoryManager, a.logger)
}

// Shutdown stops every component in reverse order. Safe to call twice.
func (a *Application) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.shutdown:
		return
	default:
		close(a.shutdown)
	}

	a.cancel()

	for i := len(a.shutdownables) - 1; i >= 0; i-- {
		component := a.shutdownables[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			component.Shutdown()
		}()

		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			a.logger.Warning("Application", "component shutdown timeout", map[string]interface{}{
				"component_index": i,
			})
		}
	}

	a.logger.Debug("Application", "shutdown sequence completed", nil)
}
