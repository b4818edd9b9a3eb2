package demarcation

import (
	"fmt"
	"image/color"

	"gocv.io/x/gocv"
)

// filled makes DrawContours fill the interior instead of stroking.
const filled = -1

// EraseContours paints each indexed contour of set out of img: first a
// stroke over the boundary to take the anti-aliased rim, then a fill.
// All indexes are checked before any pixel is written.
func EraseContours(img *gocv.Mat, set *ContourSet, indexes []int, p Params) error {
	for _, idx := range indexes {
		if idx < 0 || idx >= set.Len() {
			return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, idx, set.Len())
		}
	}

	bg := color.RGBA{R: p.Background, G: p.Background, B: p.Background, A: 255}
	for _, idx := range indexes {
		gocv.DrawContours(img, set.points, idx, bg, p.EdgeStrokeWidth)
		gocv.DrawContours(img, set.points, idx, bg, filled)
	}

	return nil
}
