package demarcation

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	ErrEmptyImage      = errors.New("image is empty")
	ErrNotGrayscale    = errors.New("image is not single-channel 8-bit")
	ErrIndexOutOfRange = errors.New("contour index out of range")
	ErrInvalidParams   = errors.New("invalid parameters")
)

// Retrieval selects which contours the extractor reports.
type Retrieval string

const (
	// RetrieveExternal reports outer boundaries only.
	RetrieveExternal Retrieval = "external"
	// RetrieveList reports every boundary, nested ones included.
	RetrieveList Retrieval = "list"
)

func (r Retrieval) mode() (gocv.RetrievalMode, error) {
	switch r {
	case RetrieveExternal, "":
		return gocv.RetrievalExternal, nil
	case RetrieveList:
		return gocv.RetrievalList, nil
	default:
		return 0, fmt.Errorf("%w: unknown retrieval mode %q", ErrInvalidParams, string(r))
	}
}

// Params holds every tunable constant of the removal heuristic.
type Params struct {
	// Blur smooths the page with a BlurKernel-sized Gaussian before Otsu.
	// Helps fonts whose strokes nearly touch; off by default.
	Blur       bool `yaml:"blur"`
	BlurKernel int  `yaml:"blur_kernel"`

	Retrieval Retrieval `yaml:"retrieval"`

	// TallNarrowRatio drops a small candidate whose height is at least this
	// multiple of its width. Such shapes are letter strokes.
	TallNarrowRatio float64 `yaml:"tall_narrow_ratio"`

	// PolygonEpsilonRatio is the polygon approximation tolerance as a
	// fraction of the contour perimeter.
	PolygonEpsilonRatio float64 `yaml:"polygon_epsilon_ratio"`
	// MinPolygonCorners is the least number of approximated vertices a
	// kamatz has.
	MinPolygonCorners int `yaml:"min_polygon_corners"`
	// MaxSquareDeviation bounds |height - width| of a kamatz, in pixels.
	MaxSquareDeviation int `yaml:"max_square_deviation"`
	// BottomRowOffsetRatio places the leg row this fraction of the
	// height above the bottom extent.
	BottomRowOffsetRatio float64 `yaml:"bottom_row_offset_ratio"`
	// LegIndentRatio is the least horizontal gap, as a fraction of the
	// width, between the rightmost point and the rightmost point of the
	// leg row. A smaller gap means a yod.
	LegIndentRatio float64 `yaml:"leg_indent_ratio"`

	// EdgeStrokeWidth is the width of the boundary stroke painted before
	// the fill.
	EdgeStrokeWidth int   `yaml:"edge_stroke_width"`
	Background      uint8 `yaml:"background"`
}

func DefaultParams() Params {
	return Params{
		Blur:                 false,
		BlurKernel:           3,
		Retrieval:            RetrieveExternal,
		TallNarrowRatio:      1.8,
		PolygonEpsilonRatio:  0.005,
		MinPolygonCorners:    8,
		MaxSquareDeviation:   2,
		BottomRowOffsetRatio: 0.25,
		LegIndentRatio:       0.25,
		EdgeStrokeWidth:      2,
		Background:           255,
	}
}

func (p Params) Validate() error {
	if p.Blur && (p.BlurKernel < 1 || p.BlurKernel%2 == 0) {
		return fmt.Errorf("%w: blur_kernel must be a positive odd number, got %d", ErrInvalidParams, p.BlurKernel)
	}

	if _, err := p.Retrieval.mode(); err != nil {
		return err
	}

	ratios := []struct {
		name  string
		value float64
	}{
		{"tall_narrow_ratio", p.TallNarrowRatio},
		{"polygon_epsilon_ratio", p.PolygonEpsilonRatio},
		{"bottom_row_offset_ratio", p.BottomRowOffsetRatio},
		{"leg_indent_ratio", p.LegIndentRatio},
	}
	for _, r := range ratios {
		if r.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %f", ErrInvalidParams, r.name, r.value)
		}
	}

	if p.MinPolygonCorners < 3 {
		return fmt.Errorf("%w: min_polygon_corners must be at least 3, got %d", ErrInvalidParams, p.MinPolygonCorners)
	}

	if p.MaxSquareDeviation < 0 {
		return fmt.Errorf("%w: max_square_deviation must not be negative, got %d", ErrInvalidParams, p.MaxSquareDeviation)
	}

	if p.EdgeStrokeWidth < 1 {
		return fmt.Errorf("%w: edge_stroke_width must be positive, got %d", ErrInvalidParams, p.EdgeStrokeWidth)
	}

	return nil
}
