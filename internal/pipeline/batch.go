package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/memory"

	"golang.org/x/sync/errgroup"
)

const DefaultPrefix = "res_otsu_"

type BatchOptions struct {
	OutDir    string
	Prefix    string
	Format    string
	Workers   int
	Algorithm string
	Params    map[string]interface{}
}

type BatchResult struct {
	Input    string
	Output   string
	Duration time.Duration
	Err      error
}

type BatchSummary struct {
	Results   []BatchResult
	Succeeded int
	Failed    int
}

// OutputPath names the result of input: prefix plus the input base name,
// with the extension swapped when format is set.
func OutputPath(input string, opts BatchOptions) string {
	base := filepath.Base(input)
	if opts.Format != "" {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + "." + strings.TrimPrefix(opts.Format, ".")
	}

	dir := opts.OutDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, opts.Prefix+base)
}

// Batch runs every input through its own Coordinator. A failing image is
// recorded in the summary and the others continue; only cancellation of ctx
// stops the run early.
func Batch(ctx context.Context, memMgr *memory.Manager, log logger.Logger, inputs []string, opts BatchOptions) (*BatchSummary, error) {
	log = logger.OrNop(log)

	// Never write results over their inputs.
	if opts.Prefix == "" && opts.OutDir == "" {
		opts.Prefix = DefaultPrefix
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]BatchResult, len(inputs))
	var mu sync.Mutex
	summary := &BatchSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, input := range inputs {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			output := OutputPath(input, opts)
			err := processOne(gctx, memMgr, log, input, output, opts)

			results[i] = BatchResult{
				Input:    input,
				Output:   output,
				Duration: time.Since(start),
				Err:      err,
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				log.Error("Batch", err, map[string]interface{}{
					"input": input,
				})
				return nil
			}
			summary.Succeeded++
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for _, r := range results {
		if r.Input != "" {
			summary.Results = append(summary.Results, r)
		}
	}

	log.Info("Batch", "batch completed", map[string]interface{}{
		"inputs":    len(inputs),
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"workers":   workers,
	})

	return summary, err
}

func processOne(ctx context.Context, memMgr *memory.Manager, log logger.Logger, input, output string, opts BatchOptions) error {
	coord := NewCoordinator(memMgr, log)
	defer coord.Shutdown()

	if _, err := coord.LoadImage(input); err != nil {
		return err
	}

	if _, err := coord.ProcessImageWithContext(ctx, opts.Algorithm, opts.Params); err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	return coord.SaveImage(output)
}
