package ir

import "fmt"

// Operand is a tensor argument to a codelet: a name, a bit-width dtype,
// symbolic shape, the ordered chain of storage nodes it travels through,
// and the back-references to the DataMovements that carry it along that
// path. Tiling is filled in by tiling.Split from the search's Solution
// once the search is done; Offsets is set only through SetOffsetMap.
type Operand struct {
	Name      string
	Role      string // "activation", "weight", "bias", "output", ...
	DtypeBits int
	Shape     map[string]int
	Layout    []string // ordered dimension names backing Shape, for layout passes
	DataPath  []string
	Moves     []int // indices into Codelet.Movements

	// Tiling maps a data_path node name to its per-dimension tile size.
	Tiling map[string]map[string]int
	// Offsets maps a data_path node name to its per-dimension tile offset.
	Offsets map[string]map[string]int
}

// IsTiled reports whether every node on the operand's data_path has a
// recorded tiling entry.
func (o *Operand) IsTiled() bool {
	if len(o.DataPath) == 0 {
		return true
	}
	for _, node := range o.DataPath {
		if _, ok := o.Tiling[node]; !ok {
			return false
		}
	}
	return true
}

// SetSizeFromSplits freezes the tile shape for this operand at node.
func (o *Operand) SetSizeFromSplits(node string, sizes map[string]int) {
	if o.Tiling == nil {
		o.Tiling = make(map[string]map[string]int)
	}
	o.Tiling[node] = sizes
}

// SetOffsetMap freezes the tile offset for this operand at node.
func (o *Operand) SetOffsetMap(node string, offsets map[string]int) {
	if o.Offsets == nil {
		o.Offsets = make(map[string]map[string]int)
	}
	o.Offsets[node] = offsets
}

// CheckTiled returns ErrMissingTile, naming the first offending node,
// if the operand is not fully tiled.
func (o *Operand) CheckTiled() error {
	for _, node := range o.DataPath {
		if _, ok := o.Tiling[node]; !ok {
			return fmt.Errorf("ir: operand %q untiled at node %q: %w", o.Name, node, ErrMissingTile)
		}
	}
	return nil
}
