package tiling

import (
	"fmt"
	"regexp"
	"strconv"

	"codeletc/flexparam"
)

// HintKey names a per-dimension, per-level tile hint: compilation
// param "M_hint1" binds to HintKey{Dim: "M", Level: 1}.
type HintKey struct {
	Dim   string
	Level int
}

var (
	tileHintKeyRe  = regexp.MustCompile(`^(.+)_hint(\d+)$`)
	levelHintKeyRe = regexp.MustCompile(`^LEVEL(\d+)_hint$`)
)

// compileHints reads codelet compilation params and separates out:
//   - fixed_tile_dims: dimensions the search must never split (split=1
//     forced at every level)
//   - LOOP_TILE_ORDER: an explicit dimension search order
//   - "<dim>_hintN": per-dimension, per-level FlexParams bound to
//     (size, split)
//   - "LEVELn_hint": whole-level FlexParams bound to (sizes, splits)
//     maps over every dimension committed at that level
//
// Any other param is left for the caller (constraint synthesis,
// codelet metadata) and ignored here.
func compileHints(params map[string]any) (tileHints map[HintKey]*flexparam.FlexParam, levelHints map[int]*flexparam.FlexParam, fixedDims map[string]bool, loopOrder []string, err error) {
	tileHints = make(map[HintKey]*flexparam.FlexParam)
	levelHints = make(map[int]*flexparam.FlexParam)
	fixedDims = make(map[string]bool)

	for key, val := range params {
		switch {
		case key == "fixed_tile_dims":
			dims, ok := toStringSlice(val)
			if !ok {
				return nil, nil, nil, nil, fmt.Errorf("tiling: param %q must be a string list", key)
			}
			for _, d := range dims {
				fixedDims[d] = true
			}

		case key == "LOOP_TILE_ORDER":
			dims, ok := toStringSlice(val)
			if !ok {
				return nil, nil, nil, nil, fmt.Errorf("tiling: param %q must be a string list", key)
			}
			loopOrder = dims

		case levelHintKeyRe.MatchString(key):
			m := levelHintKeyRe.FindStringSubmatch(key)
			level, _ := strconv.Atoi(m[1])
			body, ok := val.(string)
			if !ok {
				return nil, nil, nil, nil, fmt.Errorf("tiling: hint param %q must be a string expression", key)
			}
			fp, perr := flexparam.New(key, []string{"sizes", "splits"}, body)
			if perr != nil {
				return nil, nil, nil, nil, perr
			}
			levelHints[level] = fp

		case tileHintKeyRe.MatchString(key):
			m := tileHintKeyRe.FindStringSubmatch(key)
			dim := m[1]
			level, _ := strconv.Atoi(m[2])
			body, ok := val.(string)
			if !ok {
				return nil, nil, nil, nil, fmt.Errorf("tiling: hint param %q must be a string expression", key)
			}
			fp, perr := flexparam.New(key, []string{"size", "split"}, body)
			if perr != nil {
				return nil, nil, nil, nil, perr
			}
			tileHints[HintKey{Dim: dim, Level: level}] = fp
		}
	}
	return tileHints, levelHints, fixedDims, loopOrder, nil
}

// collectConstraintBodies returns the raw expression bodies of every
// tile and level hint declared in params, for diagnostics when the
// search that consumed them fails to find a valid tiling.
func collectConstraintBodies(params map[string]any) []string {
	var bodies []string
	for key, val := range params {
		if !tileHintKeyRe.MatchString(key) && !levelHintKeyRe.MatchString(key) {
			continue
		}
		if body, ok := val.(string); ok {
			bodies = append(bodies, fmt.Sprintf("%s: %s", key, body))
		}
	}
	return bodies
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
