package tiling

import (
	"context"
	"fmt"

	"codeletc/flexparam"
	"codeletc/hag"
	"codeletc/ir"
)

// FactorStrategy controls the order candidate split factors are tried
// in at each level.
type FactorStrategy int

const (
	StrategyAscending FactorStrategy = iota
	StrategyReversed
)

// Candidate is one permutation of split factors surviving constraint
// and hint filtering at a level, scored by a Search's Heuristic.
type Candidate struct {
	Perm  map[string]int
	Score float64
}

// StopFunc reports whether enough candidates have been gathered at the
// current level to stop enumerating further permutations.
type StopFunc func(candidates []Candidate) bool

// MetricFunc selects, by index, the best candidate from a non-empty
// slice.
type MetricFunc func(candidates []Candidate) int

// HeuristicFunc scores one permutation; lower is better under
// DefaultMetric.
type HeuristicFunc func(dims []string, perm map[string]int) float64

// DefaultStop gathers up to max candidates before stopping.
func DefaultStop(max int) StopFunc {
	return func(candidates []Candidate) bool { return len(candidates) >= max }
}

// DefaultHeuristic scores a permutation by the product of its split
// factors.
func DefaultHeuristic() HeuristicFunc {
	return func(dims []string, perm map[string]int) float64 {
		score := 1.0
		for _, d := range dims {
			if v, ok := perm[d]; ok {
				score *= float64(v)
			}
		}
		return score
	}
}

// DefaultMetric picks the minimum-score candidate, breaking ties by
// lexicographic order of split factors over dims.
func DefaultMetric(dims []string) MetricFunc {
	return func(candidates []Candidate) int {
		best := 0
		for i := 1; i < len(candidates); i++ {
			if candidates[i].Score < candidates[best].Score {
				best = i
			} else if candidates[i].Score == candidates[best].Score && lexLess(dims, candidates[i].Perm, candidates[best].Perm) {
				best = i
			}
		}
		return best
	}
}

// Search runs the multi-level tiling DFS over a codelet against a HAG.
type Search struct {
	Codelet *ir.Codelet
	Graph   *hag.Graph

	Strategy  FactorStrategy
	Stop      StopFunc
	Metric    MetricFunc
	Heuristic HeuristicFunc

	MaxCandidatesPerLevel int
}

// NewSearch builds a Search with default stop/metric/heuristic
// policies over cdlt's declared dimension order.
func NewSearch(cdlt *ir.Codelet, g *hag.Graph) *Search {
	dims := append([]string{}, cdlt.Dims...)
	return &Search{
		Codelet:               cdlt,
		Graph:                 g,
		Strategy:              StrategyAscending,
		Stop:                  DefaultStop(8),
		Metric:                DefaultMetric(dims),
		Heuristic:             DefaultHeuristic(),
		MaxCandidatesPerLevel: 8,
	}
}

// Solution is the tiling search's result: the split factor and
// resulting shape chosen at each level, and the attempt counters used
// to diagnose a failed search.
type Solution struct {
	Selected map[int]map[string]int
	Shapes   map[int]map[string]int
	Attempts map[int]int
}

type searchCtx struct {
	cdlt             *ir.Codelet
	dims             []string
	factorCache      map[string][]int
	tileHints        map[HintKey]*flexparam.FlexParam
	levelHints       map[int]*flexparam.FlexParam
	constraintByPair map[[2]string]Constraint

	shapes   map[int]map[string]int
	selected map[int]map[string]int
	accum    map[string]int
	attempts map[int]int

	stop      StopFunc
	metric    MetricFunc
	heuristic HeuristicFunc

	numLevels int

	// rejectingHint is the name of the most recent tile/level hint to
	// reject a candidate permutation, surfaced on NoValidTilingError so
	// callers can tell an over-constrained hint from exhausted search
	// space.
	rejectingHint string
}

// Run executes the search. It mutates cdlt's Operand.Tiling/Offsets as
// a side effect is NOT performed here — Run only computes and returns
// the Solution; committing it onto operands is the caller's job (see
// Split), matching the pipeline's tile-then-rewrite separation.
func (s *Search) Run(ctx context.Context) (*Solution, error) {
	cdlt := s.Codelet

	if err := cdlt.SetTileLevels(s.Graph); err != nil {
		return nil, err
	}

	numLevels := 0
	for i := range cdlt.Operands {
		if lvl := cdlt.MaxTileLevel(&cdlt.Operands[i]); lvl > numLevels {
			numLevels = lvl
		}
	}

	level0, ok := cdlt.DomainLoop[0]
	if !ok {
		return nil, fmt.Errorf("tiling: codelet %s: missing level-0 domain loop", cdlt.ID)
	}

	if numLevels == 0 {
		return &Solution{
			Selected: map[int]map[string]int{},
			Shapes:   map[int]map[string]int{0: cloneIntMap(level0)},
			Attempts: map[int]int{},
		}, nil
	}

	tileHints, levelHints, fixedDims, loopOrder, err := compileHints(cdlt.Params)
	if err != nil {
		return nil, err
	}

	constraints, err := SynthesizeConstraints(s.Graph, cdlt)
	if err != nil {
		return nil, err
	}
	constraintByPair := make(map[[2]string]Constraint, len(constraints))
	for _, c := range constraints {
		constraintByPair[[2]string{c.SrcNode, c.DstNode}] = c
	}

	dims := reorderDims(append([]string{}, cdlt.Dims...), loopOrder)

	factorCache := make(map[string][]int, len(dims))
	for _, d := range dims {
		if fixedDims[d] {
			factorCache[d] = []int{1}
			continue
		}
		divs := divisorsOf(level0[d], 1)
		if s.Strategy == StrategyReversed {
			reverseInts(divs)
		}
		factorCache[d] = divs
	}

	accum := make(map[string]int, len(dims))
	for _, d := range dims {
		accum[d] = 1
	}

	stop := s.Stop
	if stop == nil {
		stop = DefaultStop(8)
	}
	metric := s.Metric
	if metric == nil {
		metric = DefaultMetric(dims)
	}
	heuristic := s.Heuristic
	if heuristic == nil {
		heuristic = DefaultHeuristic()
	}

	st := &searchCtx{
		cdlt:             cdlt,
		dims:             dims,
		factorCache:      factorCache,
		tileHints:        tileHints,
		levelHints:       levelHints,
		constraintByPair: constraintByPair,
		shapes:           map[int]map[string]int{0: cloneIntMap(level0)},
		selected:         map[int]map[string]int{},
		accum:            accum,
		attempts:         map[int]int{},
		stop:             stop,
		metric:           metric,
		heuristic:        heuristic,
		numLevels:        numLevels,
	}

	ok2, err := st.searchLevel(ctx, 1)
	if err != nil {
		return nil, err
	}
	if !ok2 {
		return nil, &NoValidTilingError{
			CodeletID:        cdlt.ID,
			Attempts:         st.attempts,
			ConstraintBodies: collectConstraintBodies(cdlt.Params),
			OffendingHint:    st.rejectingHint,
		}
	}

	return &Solution{Selected: st.selected, Shapes: st.shapes, Attempts: st.attempts}, nil
}

func (st *searchCtx) searchLevel(ctx context.Context, level int) (bool, error) {
	if level > st.numLevels {
		return true, nil
	}
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("tiling: codelet %s level %d: %w", st.cdlt.ID, level, ErrCancelled)
	default:
	}

	perms := cartesianProduct(st.dims, st.factorCache)
	invalid := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("tiling: codelet %s level %d: %w", st.cdlt.ID, level, ErrCancelled)
		default:
		}

		var candidates []Candidate
		for _, p := range perms {
			key := permKey(st.dims, p)
			if invalid[key] {
				continue
			}
			st.attempts[level]++
			valid, err := st.evaluatePermutation(level, p)
			if err != nil {
				return false, err
			}
			if !valid {
				invalid[key] = true
				continue
			}
			candidates = append(candidates, Candidate{Perm: cloneIntMap(p), Score: st.heuristic(st.dims, p)})
			if st.stop(candidates) {
				break
			}
		}

		if len(candidates) == 0 {
			return false, nil
		}

		chosen := candidates[st.metric(candidates)]

		prevAccum := cloneIntMap(st.accum)
		st.shapes[level] = divideShape(st.shapes[level-1], chosen.Perm)
		st.selected[level] = cloneIntMap(chosen.Perm)
		for d, v := range chosen.Perm {
			st.accum[d] = st.accum[d] * v
		}

		ok, err := st.searchLevel(ctx, level+1)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		delete(st.shapes, level)
		delete(st.selected, level)
		st.accum = prevAccum
		invalid[permKey(st.dims, chosen.Perm)] = true
	}
}

// evaluatePermutation applies the per-dimension shape division, tile
// hints, level hints and HAG-derived constraints for candidate
// permutation p being considered at level. It returns false (not an
// error) for any ordinary rejection; it returns an error only for
// SizeConsistencyError or a hint evaluation failure.
func (st *searchCtx) evaluatePermutation(level int, p map[string]int) (bool, error) {
	prevShape := st.shapes[level-1]
	if !divides(prevShape, p) {
		return false, nil
	}
	shape := divideShape(prevShape, p)

	for d, sz := range shape {
		hint, ok := st.tileHints[HintKey{Dim: d, Level: level}]
		if !ok {
			continue
		}
		bound, err := hint.Bind(map[string]flexparam.Value{
			"size":  flexparam.IntValue(int64(sz)),
			"split": flexparam.IntValue(int64(p[d])),
		})
		if err != nil {
			return false, err
		}
		ok2, err := bound.EvaluateBool()
		if err != nil {
			return false, err
		}
		if !ok2 {
			st.rejectingHint = hint.Name
			return false, nil
		}
	}

	if lh, ok := st.levelHints[level]; ok {
		sizesMap := make(map[string]int64, len(shape))
		for d, v := range shape {
			sizesMap[d] = int64(v)
		}
		splitsMap := make(map[string]int64, len(p))
		for d, v := range p {
			splitsMap[d] = int64(v)
		}
		bound, err := lh.Bind(map[string]flexparam.Value{
			"sizes":  flexparam.MapValue(sizesMap),
			"splits": flexparam.MapValue(splitsMap),
		})
		if err != nil {
			return false, err
		}
		ok2, err := bound.EvaluateBool()
		if err != nil {
			return false, err
		}
		if !ok2 {
			st.rejectingHint = lh.Name
			return false, nil
		}
	}

	permMap := make(map[string]int, len(p))
	for d, v := range p {
		permMap[d] = v * st.accum[d]
	}

	seenSizes := make(map[[2]string]map[string]int)
	for mi := range st.cdlt.Movements {
		dm := &st.cdlt.Movements[mi]
		dstLvl, ok := st.cdlt.GetTileLevel(dm.DstNode)
		if !ok || dstLvl != level {
			continue
		}
		sizes := dm.GetSizeFromSplits(st.cdlt, permMap)

		pairKey := [2]string{dm.SrcNode, dm.DstNode}
		if prev, exists := seenSizes[pairKey]; exists {
			for dim, sz := range sizes {
				if prevSz, ok := prev[dim]; ok && prevSz != sz {
					return false, &SizeConsistencyError{
						CodeletID: st.cdlt.ID, Src: dm.SrcNode, Dst: dm.DstNode,
						Dim: dim, SizeA: prevSz, SizeB: sz,
					}
				}
				prev[dim] = sz
			}
		} else {
			seenSizes[pairKey] = cloneIntMap(sizes)
		}

		c, ok := st.constraintByPair[pairKey]
		if !ok {
			continue
		}
		operand := &st.cdlt.Operands[dm.OperandRef]
		totalElems := 1
		for _, sz := range sizes {
			totalElems *= sz
		}
		if !c.Check(totalElems, operand.DtypeBits) {
			return false, nil
		}
	}

	return true, nil
}
