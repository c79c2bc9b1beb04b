package transform

import (
	"codeletc/compiler"
	"codeletc/ir"
)

func operatorKind(cdlt *ir.Codelet) (string, bool) {
	v, ok := cdlt.Params["operator"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func applyPermutation(layout []string, perm []int) []string {
	out := make([]string, len(perm))
	for i, p := range perm {
		if p >= 0 && p < len(layout) {
			out[i] = layout[p]
		}
	}
	return out
}

// TemplateLayoutPass rewrites conv/pool operand layouts to trailing-
// channel order: activations permuted [0,2,3,1], weights [2,3,0,1].
// Other operator kinds are left untouched.
func TemplateLayoutPass(ctx *compiler.Context, cdlt *ir.Codelet) error {
	kind, _ := operatorKind(cdlt)
	if kind != "conv" && kind != "pool" {
		return nil
	}
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		if len(o.Layout) != 4 {
			continue
		}
		switch o.Role {
		case "activation", "output":
			o.Layout = applyPermutation(o.Layout, []int{0, 2, 3, 1})
		case "weight":
			o.Layout = applyPermutation(o.Layout, []int{2, 3, 0, 1})
		}
	}
	return nil
}
