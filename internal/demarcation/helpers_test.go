package demarcation

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const ink = 0

func newPage(width, height int) *image.Gray {
	page := image.NewGray(image.Rect(0, 0, width, height))
	for i := range page.Pix {
		page.Pix[i] = 255
	}
	return page
}

func fillRect(page *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			page.SetGray(x, y, color.Gray{Y: ink})
		}
	}
}

// drawKamatz draws a 21x21 T: a full-width head and a leg set in from the
// right edge.
func drawKamatz(page *image.Gray, at image.Point) {
	fillRect(page, image.Rect(at.X, at.Y, at.X+21, at.Y+8))
	fillRect(page, image.Rect(at.X+6, at.Y+8, at.X+11, at.Y+21))
}

// drawHook draws a 21x21 shape whose leg drops from the right edge.
func drawHook(page *image.Gray, at image.Point) {
	fillRect(page, image.Rect(at.X, at.Y, at.X+21, at.Y+8))
	fillRect(page, image.Rect(at.X+17, at.Y+8, at.X+21, at.Y+21))
}

func toMat(t *testing.T, page *image.Gray) gocv.Mat {
	t.Helper()

	mat, err := gocv.ImageGrayToMatGray(page)
	require.NoError(t, err)
	return mat
}

func pixelsOf(mat gocv.Mat) []uint8 {
	out := make([]uint8, 0, mat.Rows()*mat.Cols())
	for y := 0; y < mat.Rows(); y++ {
		for x := 0; x < mat.Cols(); x++ {
			out = append(out, mat.GetUCharAt(y, x))
		}
	}
	return out
}

func kamatzPolygon() []image.Point {
	return []image.Point{
		{0, 0}, {20, 0}, {20, 8}, {10, 8}, {10, 20}, {6, 20}, {6, 8}, {0, 8},
	}
}

// yodPolygon has eight corners and a square box, but its leg is flush with
// the right edge.
func yodPolygon() []image.Point {
	return []image.Point{
		{0, 0}, {20, 0}, {20, 20}, {16, 20}, {16, 8}, {4, 8}, {4, 10}, {0, 10},
	}
}

func squarePolygon() []image.Point {
	return []image.Point{{0, 0}, {20, 0}, {20, 20}, {0, 20}}
}
