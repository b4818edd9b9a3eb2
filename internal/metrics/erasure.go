package metrics

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var ErrDimensionMismatch = errors.New("dimension mismatch")

// inkLevel splits gray pixels into ink (at or below) and paper (above).
const inkLevel = 127

// ErasureMetrics scores a cleaned page against its source. A pixel counts as
// removed when it is ink in the original and paper in the processed image.
// With a ground truth the removal decision of every original ink pixel is
// scored: positives are pixels the truth page turned to paper.
type ErasureMetrics struct {
	TotalPixels   int `json:"total_pixels"`
	InkPixels     int `json:"ink_pixels"`
	ChangedPixels int `json:"changed_pixels"`
	ErasedPixels  int `json:"erased_pixels"`

	HasTruth       bool `json:"has_truth"`
	TruePositives  int  `json:"true_positives"`
	TrueNegatives  int  `json:"true_negatives"`
	FalsePositives int  `json:"false_positives"`
	FalseNegatives int  `json:"false_negatives"`
}

// CompareErasure measures what was erased from original to produce
// processed. truth is optional; pass an empty Mat to skip scoring.
func CompareErasure(original, processed, truth gocv.Mat) (*ErasureMetrics, error) {
	if err := validateMat(original, "original"); err != nil {
		return nil, err
	}
	if err := validateMat(processed, "processed"); err != nil {
		return nil, err
	}
	if err := validateMatDimensions(original, processed, "processed"); err != nil {
		return nil, err
	}

	hasTruth := !truth.Empty()
	if hasTruth {
		if err := validateMatDimensions(original, truth, "truth"); err != nil {
			return nil, err
		}
	}

	orig, err := toGray(original)
	if err != nil {
		return nil, fmt.Errorf("original: %w", err)
	}
	defer orig.Close()

	proc, err := toGray(processed)
	if err != nil {
		return nil, fmt.Errorf("processed: %w", err)
	}
	defer proc.Close()

	m := &ErasureMetrics{
		TotalPixels: orig.Rows() * orig.Cols(),
		HasTruth:    hasTruth,
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(orig, proc, &diff)
	m.ChangedPixels = gocv.CountNonZero(diff)

	var gt gocv.Mat
	if hasTruth {
		gt, err = toGray(truth)
		if err != nil {
			return nil, fmt.Errorf("truth: %w", err)
		}
		defer gt.Close()
	}

	for y := 0; y < orig.Rows(); y++ {
		for x := 0; x < orig.Cols(); x++ {
			if orig.GetUCharAt(y, x) > inkLevel {
				continue
			}
			m.InkPixels++

			removed := proc.GetUCharAt(y, x) > inkLevel
			if removed {
				m.ErasedPixels++
			}
			if hasTruth {
				m.tally(removed, gt.GetUCharAt(y, x) > inkLevel)
			}
		}
	}

	return m, nil
}

func (m *ErasureMetrics) tally(removed, shouldRemove bool) {
	switch {
	case removed && shouldRemove:
		m.TruePositives++
	case !removed && !shouldRemove:
		m.TrueNegatives++
	case removed:
		m.FalsePositives++
	default:
		m.FalseNegatives++
	}
}

// Precision is the share of erased ink that should have been erased.
func (m *ErasureMetrics) Precision() float64 {
	if m.TruePositives+m.FalsePositives == 0 {
		return 0.0
	}
	return float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
}

// Recall is the share of demarcation ink that was erased.
func (m *ErasureMetrics) Recall() float64 {
	if m.TruePositives+m.FalseNegatives == 0 {
		return 0.0
	}
	return float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
}

func (m *ErasureMetrics) FMeasure() float64 {
	precision := m.Precision()
	recall := m.Recall()

	if precision+recall == 0 {
		return 0.0
	}

	return 2 * (precision * recall) / (precision + recall)
}

// NRM is the negative rate metric over the removal decisions; 0 is perfect.
func (m *ErasureMetrics) NRM() float64 {
	var nrFN, nrFP float64

	if positives := m.TruePositives + m.FalseNegatives; positives > 0 {
		nrFN = float64(m.FalseNegatives) / float64(positives)
	}
	if negatives := m.TrueNegatives + m.FalsePositives; negatives > 0 {
		nrFP = float64(m.FalsePositives) / float64(negatives)
	}

	return (nrFN + nrFP) / 2
}

// Fields flattens the metrics for structured logging.
func (m *ErasureMetrics) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"total_pixels":   m.TotalPixels,
		"ink_pixels":     m.InkPixels,
		"changed_pixels": m.ChangedPixels,
		"erased_pixels":  m.ErasedPixels,
	}
	if m.HasTruth {
		fields["precision"] = m.Precision()
		fields["recall"] = m.Recall()
		fields["f_measure"] = m.FMeasure()
		fields["nrm"] = m.NRM()
	}
	return fields
}

func validateMat(mat gocv.Mat, context string) error {
	if mat.Empty() {
		return fmt.Errorf("%s: matrix is empty", context)
	}
	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("%s: invalid dimensions %dx%d", context, mat.Rows(), mat.Cols())
	}
	return nil
}

func validateMatDimensions(mat1, mat2 gocv.Mat, context string) error {
	if mat1.Rows() != mat2.Rows() || mat1.Cols() != mat2.Cols() {
		return fmt.Errorf("%s: %w %dx%d vs %dx%d",
			context, ErrDimensionMismatch, mat1.Cols(), mat1.Rows(), mat2.Cols(), mat2.Rows())
	}
	return nil
}

// toGray returns a single-channel copy the caller must close.
func toGray(mat gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()

	switch mat.Channels() {
	case 1:
		mat.CopyTo(&gray)
	case 3:
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(mat, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("unsupported channel count: %d", mat.Channels())
	}

	return gray, nil
}
