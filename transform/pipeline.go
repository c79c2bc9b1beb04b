package transform

import (
	"context"
	"fmt"

	"codeletc/compiler"
	"codeletc/ir"
	"codeletc/tiling"
)

// Pass is one stage of the ordered transformation pipeline.
type Pass struct {
	Name string
	Run  func(ctx *compiler.Context, cdlt *ir.Codelet) error
}

// Pipeline returns the six transformation passes in their fixed order.
func Pipeline() []Pass {
	return []Pass{
		{Name: "template_layout_pass", Run: TemplateLayoutPass},
		{Name: "pad_operands", Run: PadOperands},
		{Name: "update_operand_dtypes", Run: UpdateOperandDtypes},
		{Name: "add_simd_typecast", Run: AddSimdTypecast},
		{Name: "tile", Run: TilePass},
		{Name: "hoist", Run: HoistPass},
	}
}

// RunPipeline runs every pass against cdlt in order, aborting and
// wrapping the error with the codelet id and pass name the moment one
// fails.
func RunPipeline(ctx *compiler.Context, cdlt *ir.Codelet) error {
	for _, p := range Pipeline() {
		if err := p.Run(ctx, cdlt); err != nil {
			return fmt.Errorf("transform: codelet %s: pass %s: %w", cdlt.ID, p.Name, err)
		}
	}
	return nil
}

// TilePass invokes the tiling search and commits its solution onto
// cdlt via Split.
func TilePass(ctx *compiler.Context, cdlt *ir.Codelet) error {
	if ctx.Graph == nil {
		return fmt.Errorf("transform: codelet %s: tile pass requires a HAG", cdlt.ID)
	}
	search := tiling.NewSearch(cdlt, ctx.Graph)
	sol, err := search.Run(context.Background())
	if err != nil {
		return err
	}
	return tiling.Split(cdlt, sol)
}

// HoistPass invokes the hoisting rewrite.
func HoistPass(ctx *compiler.Context, cdlt *ir.Codelet) error {
	return tiling.Hoist(cdlt)
}
