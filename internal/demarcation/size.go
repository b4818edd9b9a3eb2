package demarcation

import (
	"image"
	"sort"
)

// SizedIndex pairs a contour index with its size measure.
type SizedIndex struct {
	Index int
	Size  int
}

// SortByHeight ranks contours by bounding-box height, ascending.
func SortByHeight(boxes []image.Rectangle) []SizedIndex {
	sizes := make([]SizedIndex, len(boxes))
	for i, box := range boxes {
		sizes[i] = SizedIndex{Index: i, Size: box.Dy()}
	}

	sort.SliceStable(sizes, func(i, j int) bool {
		return sizes[i].Size < sizes[j].Size
	})
	return sizes
}

// SplitIndex returns the sorted position with the largest ratio to its
// predecessor. Positions whose predecessor has size zero never win. Sets of
// fewer than two entries split at 0.
func SplitIndex(sizes []SizedIndex) int {
	split := 0
	best := 0.0

	for i := 1; i < len(sizes); i++ {
		prev := sizes[i-1].Size
		if prev == 0 {
			continue
		}

		ratio := float64(sizes[i].Size) / float64(prev)
		if ratio > best {
			best = ratio
			split = i
		}
	}

	return split
}

// DropTallNarrow removes indexes whose box height is at least ratio times
// its width.
func DropTallNarrow(indexes []int, boxes []image.Rectangle, ratio float64) []int {
	kept := make([]int, 0, len(indexes))
	for _, idx := range indexes {
		box := boxes[idx]
		if float64(box.Dy()) >= ratio*float64(box.Dx()) {
			continue
		}
		kept = append(kept, idx)
	}
	return kept
}

// SmallContours returns the indexes of the demarcation candidates: every
// contour ranked below the split point that is not tall and narrow.
func SmallContours(boxes []image.Rectangle, p Params) []int {
	sizes := SortByHeight(boxes)
	split := SplitIndex(sizes)

	small := make([]int, split)
	for i := range small {
		small[i] = sizes[i].Index
	}

	return DropTallNarrow(small, boxes, p.TallNarrowRatio)
}
