package demarcation

import "fmt"

// Map renders p as the string-keyed parameter map used by the algorithm
// registry. Keys match the YAML field names.
func (p Params) Map() map[string]interface{} {
	return map[string]interface{}{
		"blur":                    p.Blur,
		"blur_kernel":             p.BlurKernel,
		"retrieval":               string(p.Retrieval),
		"tall_narrow_ratio":       p.TallNarrowRatio,
		"polygon_epsilon_ratio":   p.PolygonEpsilonRatio,
		"min_polygon_corners":     p.MinPolygonCorners,
		"max_square_deviation":    p.MaxSquareDeviation,
		"bottom_row_offset_ratio": p.BottomRowOffsetRatio,
		"leg_indent_ratio":        p.LegIndentRatio,
		"edge_stroke_width":       p.EdgeStrokeWidth,
		"background":              int(p.Background),
	}
}

// ParamsFromMap overlays params onto the defaults. Missing keys keep their
// default; a key of the wrong type is an error.
func ParamsFromMap(params map[string]interface{}) (Params, error) {
	p := DefaultParams()

	for key, value := range params {
		var err error
		switch key {
		case "blur":
			p.Blur, err = boolParam(key, value)
		case "blur_kernel":
			p.BlurKernel, err = intParam(key, value)
		case "retrieval":
			var s string
			s, err = stringParam(key, value)
			p.Retrieval = Retrieval(s)
		case "tall_narrow_ratio":
			p.TallNarrowRatio, err = floatParam(key, value)
		case "polygon_epsilon_ratio":
			p.PolygonEpsilonRatio, err = floatParam(key, value)
		case "min_polygon_corners":
			p.MinPolygonCorners, err = intParam(key, value)
		case "max_square_deviation":
			p.MaxSquareDeviation, err = intParam(key, value)
		case "bottom_row_offset_ratio":
			p.BottomRowOffsetRatio, err = floatParam(key, value)
		case "leg_indent_ratio":
			p.LegIndentRatio, err = floatParam(key, value)
		case "edge_stroke_width":
			p.EdgeStrokeWidth, err = intParam(key, value)
		case "background":
			var v int
			v, err = intParam(key, value)
			if err == nil && (v < 0 || v > 255) {
				err = fmt.Errorf("%w: background must be within 0-255, got %d", ErrInvalidParams, v)
			}
			p.Background = uint8(v)
		default:
			err = fmt.Errorf("%w: unknown parameter %q", ErrInvalidParams, key)
		}
		if err != nil {
			return Params{}, err
		}
	}

	return p, nil
}

func boolParam(key string, value interface{}) (bool, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return false, typeError(key, "bool", value)
}

func intParam(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, typeError(key, "int", value)
}

func floatParam(key string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	}
	return 0, typeError(key, "float", value)
}

func stringParam(key string, value interface{}) (string, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return "", typeError(key, "string", value)
}

func typeError(key, want string, value interface{}) error {
	return fmt.Errorf("%w: %s must be %s, got %T", ErrInvalidParams, key, want, value)
}
