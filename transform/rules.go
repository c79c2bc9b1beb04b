package transform

import (
	"fmt"

	"codeletc/compiler"
	"codeletc/ir"
)

func ceilToMultiple(n, m int) int {
	if m <= 0 || n%m == 0 {
		return n
	}
	return (n/m + 1) * m
}

func padConv(ctx *compiler.Context, cdlt *ir.Codelet) error {
	pad, _ := cdlt.Params["pad"].(int)
	if pad == 0 {
		return nil
	}
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		if o.Role != "activation" {
			continue
		}
		if ih, ok := o.Shape["IH"]; ok {
			o.Shape["IH"] = ih + 2*pad
		}
		if iw, ok := o.Shape["IW"]; ok {
			o.Shape["IW"] = iw + 2*pad
		}
	}
	return nil
}

func padGemm(ctx *compiler.Context, cdlt *ir.Codelet) error {
	arrM, _ := cdlt.Params["array_m"].(int)
	arrN, _ := cdlt.Params["array_n"].(int)
	if arrM == 0 {
		arrM = 1
	}
	if arrN == 0 {
		arrN = 1
	}
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		if m, ok := o.Shape["M"]; ok {
			o.Shape["M"] = ceilToMultiple(m, arrM)
		}
		if k, ok := o.Shape["K"]; ok {
			o.Shape["K"] = ceilToMultiple(k, arrM)
		}
		if n, ok := o.Shape["N"]; ok {
			o.Shape["N"] = ceilToMultiple(n, arrN)
		}
	}
	return nil
}

func padUnarySimd(ctx *compiler.Context, cdlt *ir.Codelet) error {
	width, _ := cdlt.Params["simd_width"].(int)
	if width == 0 {
		width = 1
	}
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		if len(o.Layout) == 0 {
			continue
		}
		trailing := o.Layout[len(o.Layout)-1]
		if v, ok := o.Shape[trailing]; ok {
			o.Shape[trailing] = ceilToMultiple(v, width)
		}
	}
	return nil
}

// padBinarySimd broadcasts every operand to the widest shape declared
// for each dimension; a dim present at two different sizes neither of
// which is 1 is a genuine mismatch, not a broadcast.
func padBinarySimd(ctx *compiler.Context, cdlt *ir.Codelet) error {
	widest := map[string]int{}
	owner := map[string]string{}
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		for d, sz := range o.Shape {
			cur, ok := widest[d]
			if !ok {
				widest[d] = sz
				owner[d] = o.Name
				continue
			}
			if sz == cur {
				continue
			}
			if sz != 1 && cur != 1 {
				return &ShapeMismatchError{
					CodeletID: cdlt.ID, Pass: "pad_operands",
					OperandA: owner[d], OperandB: o.Name, Dim: d, SizeA: cur, SizeB: sz,
				}
			}
			if sz > cur {
				widest[d] = sz
				owner[d] = o.Name
			}
		}
	}
	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		for d := range o.Shape {
			o.Shape[d] = widest[d]
		}
	}
	return nil
}

// padRules maps operator kind to its pad_operands rule. gemm_no_bias
// pads identically to gemm; relu and elementwise alias the same
// unary-SIMD rule as any other trailing-dim-to-SIMD-width operator.
var padRules = map[string]func(*compiler.Context, *ir.Codelet) error{
	"conv":         padConv,
	"pool":         padConv,
	"gemm":         padGemm,
	"gemm_no_bias": padGemm,
	"relu":         padUnarySimd,
	"elementwise":  padUnarySimd,
	"unary_simd":   padUnarySimd,
	"binary_simd":  padBinarySimd,
}

// PadOperands applies the pad rule that padRules holds for the
// codelet's operator kind: conv and pool widen activation IH/IW by
// 2*pad, gemm rounds M/K up to array_m and N up to array_n, unary SIMD
// rounds each operand's trailing layout dim up to simd_width, and
// binary SIMD broadcasts operands to the widest size of each dim.
func PadOperands(ctx *compiler.Context, cdlt *ir.Codelet) error {
	kind, ok := operatorKind(cdlt)
	if !ok {
		return fmt.Errorf("transform: codelet %s: %w", cdlt.ID, ErrUnhandledOperator)
	}
	rule, ok := padRules[kind]
	if !ok {
		return fmt.Errorf("transform: codelet %s: operator %q: %w", cdlt.ID, kind, ErrUnhandledOperator)
	}
	return rule(ctx, cdlt)
}
