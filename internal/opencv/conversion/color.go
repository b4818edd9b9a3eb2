package conversion

import (
	"fmt"

	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// target describes a conversion by destination type and the channel count
// that needs no conversion at all.
type target struct {
	name     string
	matType  gocv.MatType
	channels int
	codes    map[int]gocv.ColorConversionCode
}

var (
	toGray = target{
		name:     "grayscale",
		matType:  gocv.MatTypeCV8UC1,
		channels: 1,
		codes: map[int]gocv.ColorConversionCode{
			3: gocv.ColorBGRToGray,
			4: gocv.ColorBGRAToGray,
		},
	}
	toBGR = target{
		name:     "BGR",
		matType:  gocv.MatTypeCV8UC3,
		channels: 3,
		codes: map[int]gocv.ColorConversionCode{
			1: gocv.ColorGrayToBGR,
			4: gocv.ColorBGRAToBGR,
		},
	}
)

func CvtColorSafe(src *safe.Mat, dst *safe.Mat, code gocv.ColorConversionCode) error {
	if err := safe.ValidateColorConversion(src, code); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := safe.ValidateMatForOperation(dst, "CvtColor destination"); err != nil {
		return err
	}

	srcMat := src.GetMat()
	return dst.Borrow(func(dstMat *gocv.Mat) error {
		gocv.CvtColor(srcMat, dstMat, code)
		return nil
	})
}

// ConvertToGrayscale returns a new single-channel copy of src. A gray src
// is cloned so the caller may always edit the result in place.
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	return convert(src, toGray)
}

// ConvertToBGR returns a new three-channel copy of src.
func ConvertToBGR(src *safe.Mat) (*safe.Mat, error) {
	return convert(src, toBGR)
}

// convert allocates the result through the tracker of src, so converted
// Mats count against the same memory budget as their source.
func convert(src *safe.Mat, t target) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "convert to "+t.name); err != nil {
		return nil, err
	}

	channels := src.Channels()
	if channels == t.channels {
		return src.Clone()
	}

	code, ok := t.codes[channels]
	if !ok {
		return nil, fmt.Errorf("cannot convert %d channels to %s", channels, t.name)
	}

	dst, err := safe.NewMatWithTracker(src.Rows(), src.Cols(), t.matType, src.Tracker(), src.Tag()+"_"+t.name)
	if err != nil {
		return nil, err
	}

	if err := CvtColorSafe(src, dst, code); err != nil {
		dst.Close()
		return nil, fmt.Errorf("convert to %s: %w", t.name, err)
	}
	return dst, nil
}
