package demarcation

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Binary is an inverted Otsu mask: ink is 255, page is 0.
type Binary struct {
	Mask      gocv.Mat
	Threshold float32
}

func (b Binary) Close() {
	b.Mask.Close()
}

// Binarize thresholds src with Otsu's method and inverts the polarity so
// that the dark glyphs become filled foreground components.
func Binarize(src gocv.Mat, p Params) (Binary, error) {
	if err := checkGray(src); err != nil {
		return Binary{}, err
	}

	input := src
	if p.Blur {
		blurred := gocv.NewMat()
		defer blurred.Close()

		gocv.GaussianBlur(src, &blurred, image.Pt(p.BlurKernel, p.BlurKernel), 0, 0, gocv.BorderDefault)
		input = blurred
	}

	mask := gocv.NewMat()
	threshold := gocv.Threshold(input, &mask, 0, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	return Binary{Mask: mask, Threshold: threshold}, nil
}

func checkGray(src gocv.Mat) error {
	if src.Empty() {
		return ErrEmptyImage
	}
	if src.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%w: got %d channels of type %v", ErrNotGrayscale, src.Channels(), src.Type())
	}
	return nil
}
