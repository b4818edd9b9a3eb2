package app

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"demarcation-eraser/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, path string, marked bool) {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 100, 140))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	ink := []image.Rectangle{image.Rect(20, 10, 50, 100)}
	if marked {
		ink = append(ink, image.Rect(60, 110, 81, 118), image.Rect(66, 118, 71, 131))
	}
	for _, r := range ink {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{})
			}
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newApplication(t *testing.T, cfg config.Config) *Application {
	t.Helper()

	a, err := NewApplication(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)
	return a
}

func TestRemoveWritesCleanPage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "page.png")
	output := filepath.Join(dir, "clean.png")
	writePage(t, input, true)

	a := newApplication(t, config.Default())
	require.NoError(t, a.Remove(input, output, false))

	m, err := a.Evaluate(input, "")
	require.NoError(t, err)
	assert.Equal(t, 21*8+5*13, m.ErasedPixels)
	assert.FileExists(t, output)
}

func TestEvaluateAgainstTruth(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "page.png")
	truth := filepath.Join(dir, "truth.png")
	writePage(t, input, true)
	writePage(t, truth, false)

	m, err := newApplication(t, config.Default()).Evaluate(input, truth)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.FMeasure(), 1e-9)
	assert.Zero(t, m.FalsePositives)
}

func TestBatchNamesOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "page.png")
	writePage(t, input, true)

	cfg := config.Default()
	cfg.OutputFormat = "bmp"

	outDir := filepath.Join(dir, "out")
	summary, err := newApplication(t, cfg).Batch([]string{input}, outDir, "clean_", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.FileExists(t, filepath.Join(outDir, "clean_page.bmp"))
}

func TestRemoveMissingInput(t *testing.T) {
	dir := t.TempDir()
	a := newApplication(t, config.Default())

	assert.Error(t, a.Remove(filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.png"), false))
	assert.NoFileExists(t, filepath.Join(dir, "out.png"))
}

func TestNewApplicationValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = -1

	_, err := NewApplication(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestShutdownIsIdempotent(t *testing.T) {
	a, err := NewApplication(config.Default(), nil)
	require.NoError(t, err)

	a.Shutdown()
	a.Shutdown()
	assert.Error(t, a.Context().Err())
}

func TestNewApplicationRejectsUnknownAlgorithm(t *testing.T) {
	cfg := config.Default()
	cfg.Algorithm = "sharpen"

	_, err := NewApplication(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestAlgorithmsListsProcessors(t *testing.T) {
	a := newApplication(t, config.Default())
	assert.Equal(t, []string{"Classification Overlay", "Demarcation Removal", "Otsu Mask"}, a.Algorithms())
}

func TestSetParametersChangesRemoval(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "page.png")
	writePage(t, input, true)

	a := newApplication(t, config.Default())

	assert.Error(t, a.SetParameters(map[string]interface{}{"blur": true, "blur_kernel": 4}))

	// Erasing with ink colour leaves every ink pixel dark.
	require.NoError(t, a.SetParameters(map[string]interface{}{"background": 0}))

	m, err := a.Evaluate(input, "")
	require.NoError(t, err)
	assert.Zero(t, m.ErasedPixels)
}
