package serialize

import (
	"fmt"
	"io"
	"strings"

	"codeletc/ir"
)

// domainPrefix names the compute domain a target node belongs to, for
// the operations-text rendering of a compute op (`SIMD-elem_add`,
// `SYSTOLIC-gemm`).
func domainPrefix(target string) string {
	t := strings.ToLower(target)
	if strings.Contains(t, "pe_array") || strings.Contains(t, "systolic") {
		return "SYSTOLIC"
	}
	return "SIMD"
}

func operandNames(cdlt *ir.Codelet, refs []int) []string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		if ref >= 0 && ref < len(cdlt.Operands) {
			names[i] = cdlt.Operands[ref].Name
		}
	}
	return names
}

func formatOp(cdlt *ir.Codelet, op ir.Operation) (string, error) {
	switch op.OpType {
	case ir.OpCompute:
		if op.Compute == nil {
			return "", fmt.Errorf("serialize: op %d: compute op has nil payload", op.OpID)
		}
		sources := strings.Join(operandNames(cdlt, op.Compute.Sources), ", ")
		dests := strings.Join(operandNames(cdlt, op.Compute.Destinations), ", ")
		return fmt.Sprintf("op%d: compute: %s-%s([%s])->[%s]", op.OpID, domainPrefix(op.Compute.Target), op.Compute.OpName, sources, dests), nil
	case ir.OpTransfer:
		if op.Transfer == nil {
			return "", fmt.Errorf("serialize: op %d: transfer op has nil payload", op.OpID)
		}
		name := ""
		if op.Transfer.OperandRef >= 0 && op.Transfer.OperandRef < len(cdlt.Operands) {
			name = cdlt.Operands[op.Transfer.OperandRef].Name
		}
		path := strings.Join(op.Transfer.Path, "->")
		return fmt.Sprintf("op%d: transfer: %s %s", op.OpID, name, path), nil
	case ir.OpConfigure:
		if op.Configure == nil {
			return "", fmt.Errorf("serialize: op %d: configure op has nil payload", op.OpID)
		}
		return fmt.Sprintf("op%d: configure: %s %s", op.OpID, op.Configure.StartOrFinish, op.Configure.Target), nil
	case ir.OpLoop:
		if op.Loop == nil {
			return "", fmt.Errorf("serialize: op %d: loop op has nil payload", op.OpID)
		}
		return fmt.Sprintf("op%d: loop: %s[%d:%d:%d]", op.OpID, op.Loop.Dim, op.Loop.Start, op.Loop.End, op.Loop.Stride), nil
	default:
		return "", fmt.Errorf("serialize: op %d: unknown op type %v", op.OpID, op.OpType)
	}
}

// WriteOperationsText renders cdlt's finalized op list one line per
// op, in Ops order, e.g. `op17: compute: SIMD-elem_add([x, y])->[z]`.
func WriteOperationsText(w io.Writer, cdlt *ir.Codelet) error {
	for _, op := range cdlt.Ops {
		line, err := formatOp(cdlt, op)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("serialize: writing codelet %s: %w", cdlt.ID, err)
		}
	}
	return nil
}
