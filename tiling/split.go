package tiling

import (
	"sort"

	"codeletc/ir"
)

// Split rewrites cdlt's ops to realize sol's committed splits: one
// rewrite round per tile level, applied band by band.
func Split(cdlt *ir.Codelet, sol *Solution) error {
	levels := make([]int, 0, len(sol.Shapes))
	for lvl := range sol.Shapes {
		if lvl > 0 {
			levels = append(levels, lvl)
		}
	}
	sort.Ints(levels)

	for _, level := range levels {
		outer := sol.Shapes[level-1]
		inner := sol.Shapes[level]
		bands := cdlt.ExtractBands()
		for _, band := range bands {
			splitBand(cdlt, band, level, outer, inner)
		}
	}

	commitOperandShapes(cdlt, sol)
	return nil
}

// commitOperandShapes records, for every node on every operand's data
// path, the tile shape committed at that node's level — satisfying
// operand.IsTiled() for every node the search actually reasoned about,
// not just the ones a Transfer/Compute op touches directly.
func commitOperandShapes(cdlt *ir.Codelet, sol *Solution) {
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		for _, node := range o.DataPath {
			lvl, ok := cdlt.GetTileLevel(node)
			if !ok {
				continue
			}
			shape, ok := sol.Shapes[lvl]
			if !ok {
				continue
			}
			o.SetSizeFromSplits(node, cloneIntMap(shape))
		}
	}
}

func splitBand(cdlt *ir.Codelet, band ir.Band, level int, outer, inner map[string]int) {
	offset := 0
	for idx := band.Start; idx < band.End; idx++ {
		i := idx + offset
		if i >= len(cdlt.Ops) {
			break
		}
		op := &cdlt.Ops[i]
		switch op.OpType {
		case ir.OpLoop:
			offset += splitLoopOp(cdlt, i, level, outer, inner)
		case ir.OpTransfer:
			offset += splitTransferOp(cdlt, i, level)
		case ir.OpCompute:
			splitComputeOp(cdlt, op, inner)
		}
	}
}

// splitLoopOp rewrites the loop at i to stride by the level's inner
// extent and inserts a fresh inner loop one level deeper. Returns how
// many ops were inserted, so the caller can keep band indices in sync.
func splitLoopOp(cdlt *ir.Codelet, i, level int, outer, inner map[string]int) int {
	op := &cdlt.Ops[i]
	if op.Loop == nil || op.Loop.Dim == "" {
		return 0
	}
	d := op.Loop.Dim
	innerSize, ok := inner[d]
	if !ok {
		return 0
	}
	outerSize, ok := outer[d]
	if !ok {
		return 0
	}

	op.Loop.Stride = innerSize
	op.Loop.End = outerSize

	innerLoop := ir.NewLoop(ir.LoopPayload{Dim: d, IterCount: innerSize, End: innerSize, Stride: 1}, level+1)
	innerLoop.DependsOn(op.OpID)
	cdlt.InsertOp(innerLoop, i+1)
	return 1
}

// splitTransferOp cuts a long transfer path at level's boundary,
// keeping the head on the outer op and moving the tail to a new inner
// op that depends on it. Transfers with a path of length <= 2 have no
// intermediate hop to split, but still need reordering: a fetch (src
// tile level above dst) is re-inserted ahead of its successor so it
// issues before the op that now depends on the tighter tile; a
// write-back (dst level at or above src) is already in the right place
// and stays.
func splitTransferOp(cdlt *ir.Codelet, i, level int) int {
	op := &cdlt.Ops[i]
	tr := op.Transfer
	if tr == nil {
		return 0
	}
	if len(tr.Path) <= 2 {
		relocateShortTransfer(cdlt, i, tr)
		return 0
	}

	splitIdx := level
	if splitIdx >= len(tr.Path)-1 {
		splitIdx = len(tr.Path) - 2
	}
	if splitIdx < 1 {
		return 0
	}

	headPath := append([]string{}, tr.Path[:splitIdx+1]...)
	tailPath := append([]string{}, tr.Path[splitIdx:]...)

	var headOffsets, tailOffsets, headSizes, tailSizes []map[string]int
	if len(tr.Offsets) == len(tr.Path)-1 {
		headOffsets = append([]map[string]int{}, tr.Offsets[:splitIdx]...)
		tailOffsets = append([]map[string]int{}, tr.Offsets[splitIdx:]...)
	}
	if len(tr.Sizes) == len(tr.Path)-1 {
		headSizes = append([]map[string]int{}, tr.Sizes[:splitIdx]...)
		tailSizes = append([]map[string]int{}, tr.Sizes[splitIdx:]...)
	}

	tr.Path = headPath
	tr.Offsets = headOffsets
	tr.Sizes = headSizes

	innerPayload := ir.TransferPayload{OperandRef: tr.OperandRef, Path: tailPath, Offsets: tailOffsets, Sizes: tailSizes}
	innerOp := ir.NewTransfer(innerPayload, level+1)
	innerOp.DependsOn(op.OpID)
	cdlt.InsertOp(innerOp, i+1)
	return 1
}

// relocateShortTransfer moves a two-hop transfer one slot earlier when
// it is a fetch (moving from a higher tile level down to a lower one),
// so it lands ahead of the successor op now operating at the tighter
// tile. It never reassigns op-ids, only positions; it is a no-op if the
// successor already depends on this transfer, since that would reorder
// the dependency itself out of place.
func relocateShortTransfer(cdlt *ir.Codelet, i int, tr *ir.TransferPayload) {
	if len(tr.Path) < 2 {
		return
	}
	srcLvl, srcOk := cdlt.GetTileLevel(tr.Path[0])
	dstLvl, dstOk := cdlt.GetTileLevel(tr.Path[1])
	if !srcOk || !dstOk || srcLvl <= dstLvl {
		return
	}
	if i+1 >= len(cdlt.Ops) {
		return
	}
	successor := &cdlt.Ops[i+1]
	for _, dep := range successor.Deps {
		if dep == cdlt.Ops[i].OpID {
			return
		}
	}
	cdlt.Ops[i], cdlt.Ops[i+1] = cdlt.Ops[i+1], cdlt.Ops[i]
}

// splitComputeOp records the compute's operand tile at this level on
// every source and destination operand.
func splitComputeOp(cdlt *ir.Codelet, op *ir.Operation, inner map[string]int) {
	cp := op.Compute
	if cp == nil {
		return
	}
	for _, ref := range cp.Sources {
		if ref >= 0 && ref < len(cdlt.Operands) {
			cdlt.Operands[ref].SetSizeFromSplits(cp.Target, cloneIntMap(inner))
		}
	}
	for _, ref := range cp.Destinations {
		if ref >= 0 && ref < len(cdlt.Operands) {
			cdlt.Operands[ref].SetSizeFromSplits(cp.Target, cloneIntMap(inner))
		}
	}
}
