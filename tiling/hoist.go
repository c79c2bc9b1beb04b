package tiling

import "codeletc/ir"

// Hoist moves an op to the earliest position its dependencies allow
// and lowers its loop-level to one above its deepest surviving
// dependency, doing so only for ops whose loop-level that lowers; an op
// without dependencies, or already at that loop-level, keeps its place.
// Every move strictly lowers one loop-level, so Hoist terminates, and it
// is idempotent: a second call against an already-hoisted codelet makes
// no further moves.
func Hoist(cdlt *ir.Codelet) error {
	for {
		moved := hoistOnePass(cdlt)
		if !moved {
			return nil
		}
	}
}

func hoistOnePass(cdlt *ir.Codelet) bool {
	position := make(map[int]int, len(cdlt.Ops))
	for i, op := range cdlt.Ops {
		position[op.OpID] = i
	}

	for i := 0; i < len(cdlt.Ops); i++ {
		op := cdlt.Ops[i]

		minPos := 0
		maxDepLevel := -1
		for _, dep := range op.Deps {
			p, ok := position[dep]
			if !ok {
				continue
			}
			if p+1 > minPos {
				minPos = p + 1
			}
			if cdlt.Ops[p].LoopLevel > maxDepLevel {
				maxDepLevel = cdlt.Ops[p].LoopLevel
			}
		}

		if minPos >= i || maxDepLevel < 0 || maxDepLevel+1 >= op.LoopLevel {
			continue
		}

		cdlt.Ops = append(cdlt.Ops[:i], cdlt.Ops[i+1:]...)
		cdlt.Ops = append(cdlt.Ops, ir.Operation{})
		copy(cdlt.Ops[minPos+1:], cdlt.Ops[minPos:len(cdlt.Ops)-1])
		cdlt.Ops[minPos] = op
		cdlt.Ops[minPos].LoopLevel = maxDepLevel + 1
		return true
	}
	return false
}
