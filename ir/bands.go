package ir

// Band is a maximal contiguous run of operations sharing the same
// nesting depth — the unit over which the tiling pass introduces
// additional loop levels.
type Band struct {
	Start int // inclusive index into Ops
	End   int // exclusive index into Ops
	Level int
}

// ExtractBands returns the maximal contiguous op runs sharing a loop
// family, identified by LoopLevel. Bands are returned in textual
// (original position) order.
func (c *Codelet) ExtractBands() []Band {
	if len(c.Ops) == 0 {
		return nil
	}
	var bands []Band
	start := 0
	level := c.Ops[0].LoopLevel
	for i := 1; i < len(c.Ops); i++ {
		if c.Ops[i].LoopLevel != level {
			bands = append(bands, Band{Start: start, End: i, Level: level})
			start = i
			level = c.Ops[i].LoopLevel
		}
	}
	bands = append(bands, Band{Start: start, End: len(c.Ops), Level: level})
	return bands
}
