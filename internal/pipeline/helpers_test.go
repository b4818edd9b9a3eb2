package pipeline

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"demarcation-eraser/internal/opencv/memory"

	"github.com/stretchr/testify/require"
)

var letter = image.Rect(20, 10, 50, 100)

func blankPage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func fill(img *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{})
		}
	}
}

// markedPage is a letter with a kamatz-shaped mark under it.
func markedPage() *image.Gray {
	img := blankPage(100, 140)
	fill(img, letter)
	fill(img, image.Rect(60, 110, 81, 118))
	fill(img, image.Rect(66, 118, 71, 131))
	return img
}

func cleanPage() *image.Gray {
	img := blankPage(100, 140)
	fill(img, letter)
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))
	return path
}

func readGray(t *testing.T, path string) *image.Gray {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, _, err := image.Decode(f)
	require.NoError(t, err)

	gray := image.NewGray(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

func newMemoryManager(t *testing.T) *memory.Manager {
	t.Helper()

	m := memory.NewManager(nil)
	t.Cleanup(m.Shutdown)
	return m
}
