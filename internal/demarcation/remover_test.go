package demarcation

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newRemover(t *testing.T) *Remover {
	t.Helper()

	r, err := NewRemover(DefaultParams(), nil)
	require.NoError(t, err)
	return r
}

func TestRemoveErasesMarkBelowLetter(t *testing.T) {
	letter := image.Rect(20, 10, 50, 100)

	page := newPage(100, 140)
	fillRect(page, letter)
	drawKamatz(page, image.Pt(60, 110))
	img := toMat(t, page)
	defer img.Close()

	want := newPage(100, 140)
	fillRect(want, letter)
	wantMat := toMat(t, want)
	defer wantMat.Close()

	result, err := newRemover(t).Remove(&img)
	require.NoError(t, err)

	assert.Equal(t, pixelsOf(wantMat), pixelsOf(img))
	assert.Equal(t, 2, result.FirstPass.Contours)
	assert.Equal(t, 1, result.FirstPass.Erased)
	assert.Equal(t, 1, result.SecondPass.Contours)
	assert.Zero(t, result.SecondPass.Erased)
	assert.Equal(t, 1, result.Erased())
}

func TestRemoveSecondPassCatchesKamatz(t *testing.T) {
	letters := []image.Rectangle{
		image.Rect(60, 20, 70, 50),
		image.Rect(80, 18, 90, 50),
	}

	page := newPage(160, 70)
	for _, l := range letters {
		fillRect(page, l)
	}
	for _, x := range []int{10, 20, 30} {
		fillRect(page, image.Rect(x, 10, x+4, 14))
	}
	drawKamatz(page, image.Pt(110, 25))
	img := toMat(t, page)
	defer img.Close()

	want := newPage(160, 70)
	for _, l := range letters {
		fillRect(want, l)
	}
	wantMat := toMat(t, want)
	defer wantMat.Close()

	result, err := newRemover(t).Remove(&img)
	require.NoError(t, err)

	assert.Equal(t, 3, result.FirstPass.Erased, "dots go in the first pass")
	assert.Equal(t, 1, result.SecondPass.Erased, "kamatz goes in the second pass")
	assert.Equal(t, pixelsOf(wantMat), pixelsOf(img))
}

func TestRemoveKeepsHookShapedMark(t *testing.T) {
	page := newPage(160, 70)
	fillRect(page, image.Rect(60, 20, 70, 50))
	fillRect(page, image.Rect(80, 18, 90, 50))
	for _, x := range []int{10, 20, 30} {
		fillRect(page, image.Rect(x, 10, x+4, 14))
	}
	drawHook(page, image.Pt(110, 25))
	img := toMat(t, page)
	defer img.Close()

	result, err := newRemover(t).Remove(&img)
	require.NoError(t, err)

	assert.Zero(t, result.SecondPass.Erased)
	assert.Equal(t, uint8(ink), img.GetUCharAt(40, 128), "hook leg survives")
}

func TestRemoveEmptyImageIsNoop(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	result, err := newRemover(t).Remove(&img)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestRemoveBlankPageIsNoop(t *testing.T) {
	img := toMat(t, newPage(30, 30))
	defer img.Close()
	before := pixelsOf(img)

	result, err := newRemover(t).Remove(&img)
	require.NoError(t, err)
	assert.Zero(t, result.Erased())
	assert.Equal(t, before, pixelsOf(img))
}

func TestRemoveRejectsColor(t *testing.T) {
	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := newRemover(t).Remove(&img)
	assert.ErrorIs(t, err, ErrNotGrayscale)
}

func TestClassifyLeavesImageUntouched(t *testing.T) {
	page := newPage(160, 70)
	fillRect(page, image.Rect(60, 20, 70, 50))
	fillRect(page, image.Rect(80, 18, 90, 50))
	for _, x := range []int{10, 20, 30} {
		fillRect(page, image.Rect(x, 10, x+4, 14))
	}
	drawKamatz(page, image.Pt(110, 25))
	img := toMat(t, page)
	defer img.Close()
	before := pixelsOf(img)

	c, err := newRemover(t).Classify(img)
	require.NoError(t, err)

	assert.Equal(t, before, pixelsOf(img))
	assert.Len(t, c.Demarcation, 3)
	require.Len(t, c.Kamatz, 1)
	assert.Equal(t, 1, c.SecondPass.Erased)
}

func TestNewRemoverValidatesParams(t *testing.T) {
	p := DefaultParams()
	p.TallNarrowRatio = 0
	_, err := NewRemover(p, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	p = DefaultParams()
	p.Blur = true
	p.BlurKernel = 4
	_, err = NewRemover(p, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	p = DefaultParams()
	p.Retrieval = "tree"
	_, err = NewRemover(p, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestAnalyzeIsPureFunctionOfImage(t *testing.T) {
	page := newPage(80, 60)
	fillRect(page, image.Rect(10, 10, 50, 50))
	for _, x := range []int{55, 62, 70} {
		fillRect(page, image.Rect(x, 5, x+5, 10))
	}
	img := toMat(t, page)
	defer img.Close()

	first, err := Analyze(img, DefaultParams())
	require.NoError(t, err)
	defer first.Close()

	second, err := Analyze(img, DefaultParams())
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, first.Contours.Boxes(), second.Contours.Boxes())
	assert.Equal(t, first.Small, second.Small)

	require.Len(t, first.Small, 3)
	for _, idx := range first.Small {
		assert.Equal(t, 5, first.Contours.Box(idx).Dy())
	}
}
