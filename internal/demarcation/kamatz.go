package demarcation

import (
	"image"

	"gocv.io/x/gocv"
)

// IsKamatz reports whether contour has the kamatz silhouette: a complex
// polygon, a near-square box, and a leg set well in from the right edge.
//
// The leg test separates it from a yod, which has the same head but a leg
// that drops from the right edge:
//
//	yod            kamatz
//	* * * * A      * * * * * A
//	* * * * *      * * * * * *
//	      * *          * B
//	      * B          * *
//	      * *
//
// A is the rightmost point, B the rightmost point on a row a quarter of the
// height above the bottom.
func IsKamatz(contour gocv.PointVector, p Params) bool {
	if contour.Size() == 0 {
		return false
	}

	if polygonCorners(contour, p.PolygonEpsilonRatio) < p.MinPolygonCorners {
		return false
	}

	box := gocv.BoundingRect(contour)
	if abs(box.Dx()-box.Dy()) > p.MaxSquareDeviation {
		return false
	}

	return legIndented(contour, box, p)
}

// Kamatzs filters indexes of set down to the kamatz shaped contours.
func Kamatzs(set *ContourSet, indexes []int, p Params) []int {
	var found []int
	for _, idx := range indexes {
		if IsKamatz(set.At(idx), p) {
			found = append(found, idx)
		}
	}
	return found
}

func polygonCorners(contour gocv.PointVector, epsilonRatio float64) int {
	perimeter := gocv.ArcLength(contour, true)

	approx := gocv.ApproxPolyDP(contour, epsilonRatio*perimeter, true)
	defer approx.Close()

	return approx.Size()
}

func legIndented(contour gocv.PointVector, box image.Rectangle, p Params) bool {
	points := contour.ToPoints()

	rightmost, bottom := points[0].X, points[0].Y
	for _, pt := range points[1:] {
		if pt.X > rightmost {
			rightmost = pt.X
		}
		if pt.Y > bottom {
			bottom = pt.Y
		}
	}

	legRow := int(float64(bottom) - p.BottomRowOffsetRatio*float64(box.Dy()))

	legRight, found := 0, false
	for _, pt := range points {
		if gocv.PointPolygonTest(contour, image.Pt(pt.X, legRow), false) < 0 {
			continue
		}
		if !found || pt.X > legRight {
			legRight = pt.X
			found = true
		}
	}

	// No point lies on the leg row, so the leg cannot be located. The
	// candidate is rejected and the shape stays on the page.
	if !found {
		return false
	}

	return float64(rightmost-legRight) >= p.LegIndentRatio*float64(box.Dx())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
