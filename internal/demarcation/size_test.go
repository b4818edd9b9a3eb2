package demarcation

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(w, h int) image.Rectangle {
	return image.Rect(0, 0, w, h)
}

func TestSortByHeightAscending(t *testing.T) {
	boxes := []image.Rectangle{box(5, 30), box(5, 4), box(5, 12), box(9, 4)}

	sizes := SortByHeight(boxes)

	assert.Equal(t, []SizedIndex{
		{Index: 1, Size: 4},
		{Index: 3, Size: 4},
		{Index: 2, Size: 12},
		{Index: 0, Size: 30},
	}, sizes)
}

func TestSplitIndex(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		want  int
	}{
		{"empty", nil, 0},
		{"single", []int{7}, 0},
		{"largest jump", []int{3, 4, 4, 20, 22}, 3},
		{"first jump wins ties", []int{2, 4, 8}, 1},
		{"zero denominator skipped", []int{0, 5, 6}, 2},
		{"all zero", []int{0, 0, 0}, 0},
		{"equal sizes", []int{5, 5, 5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sizes := make([]SizedIndex, len(tt.sizes))
			for i, s := range tt.sizes {
				sizes[i] = SizedIndex{Index: i, Size: s}
			}
			assert.Equal(t, tt.want, SplitIndex(sizes))
		})
	}
}

func TestSplitIndexStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 200; n++ {
		boxes := make([]image.Rectangle, rng.Intn(12))
		for i := range boxes {
			boxes[i] = box(1+rng.Intn(40), rng.Intn(60))
		}

		split := SplitIndex(SortByHeight(boxes))

		if len(boxes) <= 1 {
			require.Zero(t, split)
			continue
		}
		require.GreaterOrEqual(t, split, 0)
		require.Less(t, split, len(boxes))
	}
}

func TestDropTallNarrow(t *testing.T) {
	boxes := []image.Rectangle{
		box(10, 18), // exactly 1.8: dropped
		box(10, 17),
		box(3, 20),
		box(20, 3),
	}

	kept := DropTallNarrow([]int{0, 1, 2, 3}, boxes, 1.8)

	assert.Equal(t, []int{1, 3}, kept)
}

func TestSmallContoursSeparatesDotsFromSquare(t *testing.T) {
	boxes := []image.Rectangle{
		box(5, 5),
		box(40, 40),
		box(6, 5),
		box(5, 6),
	}

	small := SmallContours(boxes, DefaultParams())

	assert.ElementsMatch(t, []int{0, 2, 3}, small)
}

func TestSmallContoursNeverKeepsTallNarrow(t *testing.T) {
	boxes := []image.Rectangle{
		box(5, 5),
		box(3, 12),
		box(40, 40),
		box(5, 5),
	}

	small := SmallContours(boxes, DefaultParams())

	assert.ElementsMatch(t, []int{0, 3}, small)
	assert.NotContains(t, small, 1)
}

func TestSmallContoursEmptyAndSingle(t *testing.T) {
	assert.Empty(t, SmallContours(nil, DefaultParams()))
	assert.Empty(t, SmallContours([]image.Rectangle{box(4, 4)}, DefaultParams()))
}
