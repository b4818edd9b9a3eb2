package bridge

import (
	"fmt"
	"image"
	"image/color"

	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MatToImage copies an 8-bit Mat into a Go image. One channel gives
// *image.Gray, three (BGR) or four (BGRA) give *image.RGBA.
func MatToImage(mat *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(mat, "MatToImage"); err != nil {
		return nil, err
	}

	rows := mat.Rows()
	cols := mat.Cols()

	switch channels := mat.Channels(); channels {
	case 1:
		return matToGray(mat, rows, cols)
	case 3, 4:
		return matToRGBA(mat, rows, cols, channels)
	default:
		return nil, fmt.Errorf("unsupported number of channels: %d", channels)
	}
}

func matToGray(mat *safe.Mat, rows, cols int) (*image.Gray, error) {
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			value, err := mat.GetUCharAt(y, x)
			if err != nil {
				return nil, fmt.Errorf("failed to get pixel at (%d,%d): %w", x, y, err)
			}
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}

	return img, nil
}

func matToRGBA(mat *safe.Mat, rows, cols, channels int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))

	var bgra [4]uint8
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			bgra[3] = 255
			for c := 0; c < channels; c++ {
				v, err := mat.GetUCharAt3(y, x, c)
				if err != nil {
					return nil, fmt.Errorf("failed to get channel %d at (%d,%d): %w", c, x, y, err)
				}
				bgra[c] = v
			}
			img.SetRGBA(x, y, color.RGBA{R: bgra[2], G: bgra[1], B: bgra[0], A: bgra[3]})
		}
	}

	return img, nil
}

// ImageToMat copies a Go image into a new Mat: *image.Gray becomes a
// single-channel Mat, everything else becomes BGR.
func ImageToMat(img image.Image) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()

	if gray, ok := img.(*image.Gray); ok {
		return grayToMat(gray, bounds)
	}
	return colorToMat(img, bounds)
}

func grayToMat(img *image.Gray, bounds image.Rectangle) (*safe.Mat, error) {
	mat, err := safe.NewMat(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, err
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if err := mat.SetUCharAt(y-bounds.Min.Y, x-bounds.Min.X, img.GrayAt(x, y).Y); err != nil {
				mat.Close()
				return nil, fmt.Errorf("failed to set pixel at (%d,%d): %w", x, y, err)
			}
		}
	}

	return mat, nil
}

func colorToMat(img image.Image, bounds image.Rectangle) (*safe.Mat, error) {
	mat, err := safe.NewMat(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC3)
	if err != nil {
		return nil, err
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			bgr := [3]uint8{uint8(b >> 8), uint8(g >> 8), uint8(r >> 8)}

			for c, v := range bgr {
				if err := mat.SetUCharAt3(y-bounds.Min.Y, x-bounds.Min.X, c, v); err != nil {
					mat.Close()
					return nil, fmt.Errorf("failed to set channel %d at (%d,%d): %w", c, x, y, err)
				}
			}
		}
	}

	return mat, nil
}
