package conversion

import (
	"testing"

	"demarcation-eraser/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newBGR(t *testing.T, b, g, r uint8) *safe.Mat {
	t.Helper()

	mat, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			require.NoError(t, mat.SetUCharAt3(y, x, 0, b))
			require.NoError(t, mat.SetUCharAt3(y, x, 1, g))
			require.NoError(t, mat.SetUCharAt3(y, x, 2, r))
		}
	}
	return mat
}

func TestConvertToGrayscaleFromBGR(t *testing.T) {
	src := newBGR(t, 255, 255, 255)
	defer src.Close()

	gray, err := ConvertToGrayscale(src)
	require.NoError(t, err)
	defer gray.Close()

	assert.Equal(t, 1, gray.Channels())
	v, err := gray.GetUCharAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), v)
}

func TestConvertToGrayscaleClonesGray(t *testing.T) {
	src, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer src.Close()
	require.NoError(t, src.SetUCharAt(0, 0, 1))

	gray, err := ConvertToGrayscale(src)
	require.NoError(t, err)
	defer gray.Close()

	assert.NotEqual(t, src.ID(), gray.ID())
	require.NoError(t, gray.SetUCharAt(0, 0, 42))
	v, _ := src.GetUCharAt(0, 0)
	assert.Equal(t, uint8(1), v)
}

func TestConvertToBGRFromGray(t *testing.T) {
	src, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer src.Close()
	require.NoError(t, src.SetUCharAt(0, 1, 128))

	bgr, err := ConvertToBGR(src)
	require.NoError(t, err)
	defer bgr.Close()

	assert.Equal(t, 3, bgr.Channels())
	for c := 0; c < 3; c++ {
		v, err := bgr.GetUCharAt3(0, 1, c)
		require.NoError(t, err)
		assert.Equal(t, uint8(128), v)
	}
}

func TestConvertRejectsInvalid(t *testing.T) {
	_, err := ConvertToGrayscale(nil)
	assert.Error(t, err)

	src := newBGR(t, 1, 2, 3)
	src.Close()
	_, err = ConvertToBGR(src)
	assert.Error(t, err)
}
