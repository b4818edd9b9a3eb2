package demarcation

import (
	"fmt"
	"image"

	"demarcation-eraser/internal/logger"

	"gocv.io/x/gocv"
)

// Stage is one binarize, extract and size-classify pass over an image.
// It owns its contour set; Small indexes into it.
type Stage struct {
	Contours  *ContourSet
	Small     []int
	Threshold float32
}

func (s *Stage) Close() {
	if s != nil && s.Contours != nil {
		s.Contours.Close()
	}
}

// Analyze runs one stage on the current content of img.
func Analyze(img gocv.Mat, p Params) (*Stage, error) {
	binary, err := Binarize(img, p)
	if err != nil {
		return nil, err
	}
	defer binary.Close()

	set, err := ExtractContours(binary.Mask, p.Retrieval)
	if err != nil {
		return nil, err
	}

	return &Stage{
		Contours:  set,
		Small:     SmallContours(set.Boxes(), p),
		Threshold: binary.Threshold,
	}, nil
}

type StageReport struct {
	Threshold float32 `json:"threshold"`
	Contours  int     `json:"contours"`
	Small     int     `json:"small"`
	Erased    int     `json:"erased"`
}

func (r StageReport) fields(prefix string) map[string]interface{} {
	return map[string]interface{}{
		prefix + "_threshold": r.Threshold,
		prefix + "_contours":  r.Contours,
		prefix + "_small":     r.Small,
		prefix + "_erased":    r.Erased,
	}
}

// Result summarises both passes of a removal.
type Result struct {
	FirstPass  StageReport `json:"first_pass"`
	SecondPass StageReport `json:"second_pass"`
}

func (r Result) Erased() int {
	return r.FirstPass.Erased + r.SecondPass.Erased
}

// Classification lists the contours a removal erases, by pass.
type Classification struct {
	Result
	Demarcation [][]image.Point
	Kamatz      [][]image.Point
}

type Remover struct {
	params Params
	logger logger.Logger
}

func NewRemover(p Params, log logger.Logger) (*Remover, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Remover{params: p, logger: logger.OrNop(log)}, nil
}

func (r *Remover) Params() Params {
	return r.params
}

// Remove erases the demarcation of img in place. The first pass erases the
// small components; the second pass re-extracts the erased page and erases
// the kamatz shapes among its small components. An empty img is a no-op.
func (r *Remover) Remove(img *gocv.Mat) (Result, error) {
	c, err := r.run(img, false)
	return c.Result, err
}

// Classify reports what Remove would erase without touching img.
func (r *Remover) Classify(img gocv.Mat) (Classification, error) {
	if img.Empty() {
		return Classification{}, nil
	}

	scratch := img.Clone()
	defer scratch.Close()

	return r.run(&scratch, true)
}

func (r *Remover) run(img *gocv.Mat, collect bool) (Classification, error) {
	var c Classification

	if img.Empty() {
		r.logger.Debug("Remover", "empty image, nothing to erase", nil)
		return c, nil
	}

	first, err := Analyze(*img, r.params)
	if err != nil {
		return c, fmt.Errorf("first pass: %w", err)
	}
	defer first.Close()

	if collect {
		c.Demarcation = collectPoints(first.Contours, first.Small)
	}
	if err := EraseContours(img, first.Contours, first.Small, r.params); err != nil {
		return c, fmt.Errorf("first pass: %w", err)
	}
	c.FirstPass = StageReport{
		Threshold: first.Threshold,
		Contours:  first.Contours.Len(),
		Small:     len(first.Small),
		Erased:    len(first.Small),
	}

	second, err := Analyze(*img, r.params)
	if err != nil {
		return c, fmt.Errorf("second pass: %w", err)
	}
	defer second.Close()

	kamatzs := Kamatzs(second.Contours, second.Small, r.params)
	if collect {
		c.Kamatz = collectPoints(second.Contours, kamatzs)
	}
	if err := EraseContours(img, second.Contours, kamatzs, r.params); err != nil {
		return c, fmt.Errorf("second pass: %w", err)
	}
	c.SecondPass = StageReport{
		Threshold: second.Threshold,
		Contours:  second.Contours.Len(),
		Small:     len(second.Small),
		Erased:    len(kamatzs),
	}

	fields := c.FirstPass.fields("first")
	for k, v := range c.SecondPass.fields("second") {
		fields[k] = v
	}
	r.logger.Debug("Remover", "demarcation removed", fields)

	return c, nil
}

func collectPoints(set *ContourSet, indexes []int) [][]image.Point {
	points := make([][]image.Point, 0, len(indexes))
	for _, idx := range indexes {
		points = append(points, set.Points(idx))
	}
	return points
}
