package ir

// DimShape describes how one operand dimension behaves under tiling:
// either it tracks a named loop's split factor, or it is a fixed static
// extent untouched by the search (e.g. a broadcast or constant axis).
type DimShape struct {
	Loop         string
	Static       int
	DrivenByLoop bool
}

// DataMovement is one hop of an operand between two HAG nodes: the
// per-loop offset a tile starts at, and the per-dimension shape
// description used to compute tile sizes under a given split
// permutation.
type DataMovement struct {
	SrcNode    string
	DstNode    string
	OffsetMap  map[string]map[string]int // loop -> dim -> offset
	ShapeMap   map[string]DimShape       // dim -> shape description
	OperandRef int
}

// GetSizeFromSplits returns, for each operand dimension present in
// ShapeMap, the tile size arriving at DstNode once the per-loop split
// factors in perm are applied. perm maps a loop name to the total
// accumulated split factor (product of all splits chosen for that loop
// down to the current level). Dimensions not driven by a loop retain
// their static shape.
func (dm *DataMovement) GetSizeFromSplits(cdlt *Codelet, perm map[string]int) map[string]int {
	sizes := make(map[string]int, len(dm.ShapeMap))
	for dim, ds := range dm.ShapeMap {
		if !ds.DrivenByLoop {
			sizes[dim] = ds.Static
			continue
		}
		total, ok := perm[ds.Loop]
		if !ok || total <= 0 {
			sizes[dim] = ds.Static
			continue
		}
		full := cdlt.LoopIterCount(ds.Loop)
		sizes[dim] = full / total
	}
	return sizes
}
