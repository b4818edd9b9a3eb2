package demarcation

import (
	"image"

	"gocv.io/x/gocv"
)

// ContourSet is the result of one extraction call. Indices into it are only
// meaningful for this set; a later extraction yields a new, unrelated set.
type ContourSet struct {
	points gocv.PointsVector
	boxes  []image.Rectangle
}

// ExtractContours traces the foreground components of a binary mask with
// straight-run compression.
func ExtractContours(binary gocv.Mat, retrieval Retrieval) (*ContourSet, error) {
	mode, err := retrieval.mode()
	if err != nil {
		return nil, err
	}

	return newContourSet(gocv.FindContours(binary, mode, gocv.ChainApproxSimple)), nil
}

// NewContourSet builds a set from explicit point lists.
func NewContourSet(contours [][]image.Point) *ContourSet {
	return newContourSet(gocv.NewPointsVectorFromPoints(contours))
}

func newContourSet(points gocv.PointsVector) *ContourSet {
	set := &ContourSet{points: points}

	set.boxes = make([]image.Rectangle, points.Size())
	for i := range set.boxes {
		set.boxes[i] = gocv.BoundingRect(points.At(i))
	}
	return set
}

func (s *ContourSet) Len() int {
	return len(s.boxes)
}

// At returns a view of contour i. It is owned by the set and must not be
// closed by the caller.
func (s *ContourSet) At(i int) gocv.PointVector {
	return s.points.At(i)
}

func (s *ContourSet) Points(i int) []image.Point {
	return s.points.At(i).ToPoints()
}

func (s *ContourSet) Box(i int) image.Rectangle {
	return s.boxes[i]
}

func (s *ContourSet) Boxes() []image.Rectangle {
	return s.boxes
}

func (s *ContourSet) Close() {
	s.points.Close()
	s.boxes = nil
}
