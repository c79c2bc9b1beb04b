package transform

import (
	"fmt"
	"strings"

	"codeletc/compiler"
	"codeletc/ir"
)

// UpdateOperandDtypes binds every operand's DtypeBits from the
// codelet's dtype_map compilation parameter: systolic codelets (gemm,
// gemm_no_bias, conv) bind weight/activation operands to
// dtype_map[SYSTOLIC_ARRAY][inp_weight] and bias/output operands to
// dtype_map[SYSTOLIC_ARRAY][bias_out]; everything else binds to
// dtype_map[SIMD][default].
func UpdateOperandDtypes(ctx *compiler.Context, cdlt *ir.Codelet) error {
	dtypeMap, ok := cdlt.Params["dtype_map"].(map[string]map[string]int)
	if !ok {
		return fmt.Errorf("transform: codelet %s: missing dtype_map compilation parameter", cdlt.ID)
	}
	kind, _ := operatorKind(cdlt)
	systolic := kind == "gemm" || kind == "gemm_no_bias" || kind == "conv"

	for i := range cdlt.Operands {
		o := &cdlt.Operands[i]
		if systolic {
			switch o.Role {
			case "weight", "activation":
				if bits, ok := dtypeMap["SYSTOLIC_ARRAY"]["inp_weight"]; ok {
					o.DtypeBits = bits
				}
			case "bias", "output":
				if bits, ok := dtypeMap["SYSTOLIC_ARRAY"]["bias_out"]; ok {
					o.DtypeBits = bits
				}
			}
			continue
		}
		if bits, ok := dtypeMap["SIMD"]["default"]; ok {
			o.DtypeBits = bits
		}
	}
	return nil
}

func domainOf(target string) string {
	t := strings.ToLower(target)
	if strings.Contains(t, "pe_array") || strings.Contains(t, "systolic") {
		return "SYSTOLIC_ARRAY"
	}
	return "SIMD"
}

// AddSimdTypecast walks the codelet's compute ops in order, tracking
// the dtype domain each operand was last produced in. Whenever a
// compute's target domain differs from a source operand's last
// recorded domain, a SIMD cast compute op is inserted immediately
// ahead of it.
func AddSimdTypecast(ctx *compiler.Context, cdlt *ir.Codelet) error {
	dtypeMap, ok := cdlt.Params["dtype_map"].(map[string]map[string]int)
	if !ok {
		return fmt.Errorf("transform: codelet %s: missing dtype_map compilation parameter", cdlt.ID)
	}

	lastDomain := make(map[int]string, len(cdlt.Operands))
	lastProducer := make(map[int]int, len(cdlt.Operands))
	for i := range cdlt.Operands {
		lastDomain[i] = domainOf("") // SIMD by default: storage-resident operands start undomained
	}

	offset := 0
	n := len(cdlt.Ops)
	for idx := 0; idx < n; idx++ {
		i := idx + offset
		if i < 0 || i >= len(cdlt.Ops) {
			break
		}
		op := cdlt.Ops[i]
		if op.OpType != ir.OpCompute || op.Compute == nil {
			continue
		}
		domain := domainOf(op.Compute.Target)

		for _, ref := range op.Compute.Sources {
			if ref < 0 || ref >= len(cdlt.Operands) {
				continue
			}
			if lastDomain[ref] == domain {
				continue
			}
			bits, ok := dtypeMap[domain]["default"]
			if !ok {
				bits = cdlt.Operands[ref].DtypeBits
			}
			castOp := ir.NewCompute(ir.ComputePayload{
				OpName: "SIMD-cast", Target: op.Compute.Target,
				Sources: []int{ref}, Destinations: []int{ref},
			}, op.LoopLevel)
			if producer, ok := lastProducer[ref]; ok {
				castOp.DependsOn(producer)
			}
			insertIdx := cdlt.InsertOp(castOp, i)
			cdlt.Operands[ref].DtypeBits = bits
			cdlt.Ops[insertIdx+1].DependsOn(cdlt.Ops[insertIdx].OpID)
			lastDomain[ref] = domain
			lastProducer[ref] = cdlt.Ops[insertIdx].OpID
			offset++
			i++
		}

		for _, ref := range op.Compute.Destinations {
			if ref < 0 || ref >= len(cdlt.Operands) {
				continue
			}
			lastDomain[ref] = domain
			lastProducer[ref] = cdlt.Ops[i].OpID
		}
	}
	return nil
}
