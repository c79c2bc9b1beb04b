// Package serialize converts a compiled codelet to and from the two
// artifact forms spec §6 requires: a human-readable operations-text
// dump and an exact-field-name JSON document.
package serialize

import (
	"encoding/json"
	"fmt"

	"codeletc/ir"
)

// CodeletJSON mirrors ir.Codelet for marshaling, matching the teacher's
// ProblemJSON/SolutionJSON mirror-struct pattern rather than relying on
// struct tags directly on ir.Codelet (which would leak serialization
// concerns into the IR package).
type CodeletJSON struct {
	ID           string                     `json:"id"`
	InstanceID   int                        `json:"instance_id"`
	Dims         []string                   `json:"dims"`
	Params       map[string]any             `json:"params,omitempty"`
	Operands     []operandJSON              `json:"operands"`
	Movements    []movementJSON             `json:"movements"`
	Ops          []operationJSON            `json:"ops"`
	DomainLoop   map[int]map[string]int     `json:"domain_loop,omitempty"`
	DomainTiling map[int]map[string]int     `json:"domain_tiling,omitempty"`
}

type operandJSON struct {
	Name      string                    `json:"name"`
	Role      string                    `json:"role,omitempty"`
	DtypeBits int                       `json:"dtype_bits,omitempty"`
	Shape     map[string]int            `json:"shape,omitempty"`
	Layout    []string                  `json:"layout,omitempty"`
	DataPath  []string                  `json:"data_path,omitempty"`
	Moves     []int                     `json:"moves,omitempty"`
	Tiling    map[string]map[string]int `json:"tiling,omitempty"`
	Offsets   map[string]map[string]int `json:"offsets,omitempty"`
}

type dimShapeJSON struct {
	Loop         string `json:"loop,omitempty"`
	Static       int    `json:"static,omitempty"`
	DrivenByLoop bool   `json:"driven_by_loop,omitempty"`
}

type movementJSON struct {
	SrcNode    string                        `json:"src_node"`
	DstNode    string                        `json:"dst_node"`
	OperandRef int                           `json:"operand_ref"`
	OffsetMap  map[string]map[string]int     `json:"offset_map,omitempty"`
	ShapeMap   map[string]dimShapeJSON       `json:"shape_map,omitempty"`
}

// operationJSON is the exact-field-name op encoding spec §6 specifies:
// op_type, op_id, plus kind-specific fields. Every kind's fields live
// on one flat struct with omitempty, since only one payload is ever
// populated per op.
type operationJSON struct {
	OpID       int    `json:"op_id"`
	GlobalOpID int    `json:"global_op_id,omitempty"`
	OpType     string `json:"op_type"`
	LoopLevel  int    `json:"loop_level"`
	Deps       []int  `json:"deps,omitempty"`

	// compute
	OperationName string `json:"operation_name,omitempty"`
	Target        string `json:"target,omitempty"`
	Sources       []int  `json:"sources,omitempty"`
	Destinations  []int  `json:"destinations,omitempty"`

	// configure (Target shared with compute)
	StartOrFinish string `json:"start_or_finish,omitempty"`

	// transfer
	Operand *int             `json:"operand,omitempty"`
	Path    []string         `json:"path,omitempty"`
	Offsets []map[string]int `json:"offsets,omitempty"`
	Sizes   []map[string]int `json:"sizes,omitempty"`

	// loop
	Dim       string `json:"dim,omitempty"`
	IterCount int    `json:"iter_count,omitempty"`
	Start     int    `json:"start,omitempty"`
	End       int    `json:"end,omitempty"`
	Stride    int    `json:"stride,omitempty"`
}

func toOperationJSON(op ir.Operation) (operationJSON, error) {
	oj := operationJSON{
		OpID: op.OpID, GlobalOpID: op.GlobalOpID, OpType: op.OpType.String(),
		LoopLevel: op.LoopLevel, Deps: op.Deps,
	}
	switch op.OpType {
	case ir.OpCompute:
		if op.Compute == nil {
			return oj, fmt.Errorf("serialize: op %d: compute op has nil payload", op.OpID)
		}
		oj.OperationName = op.Compute.OpName
		oj.Target = op.Compute.Target
		oj.Sources = op.Compute.Sources
		oj.Destinations = op.Compute.Destinations
	case ir.OpConfigure:
		if op.Configure == nil {
			return oj, fmt.Errorf("serialize: op %d: configure op has nil payload", op.OpID)
		}
		oj.StartOrFinish = op.Configure.StartOrFinish
		oj.Target = op.Configure.Target
	case ir.OpTransfer:
		if op.Transfer == nil {
			return oj, fmt.Errorf("serialize: op %d: transfer op has nil payload", op.OpID)
		}
		ref := op.Transfer.OperandRef
		oj.Operand = &ref
		oj.Path = op.Transfer.Path
		oj.Offsets = op.Transfer.Offsets
		oj.Sizes = op.Transfer.Sizes
	case ir.OpLoop:
		if op.Loop == nil {
			return oj, fmt.Errorf("serialize: op %d: loop op has nil payload", op.OpID)
		}
		oj.Dim = op.Loop.Dim
		oj.IterCount = op.Loop.IterCount
		oj.Start = op.Loop.Start
		oj.End = op.Loop.End
		oj.Stride = op.Loop.Stride
	default:
		return oj, fmt.Errorf("serialize: op %d: unknown op type %v", op.OpID, op.OpType)
	}
	return oj, nil
}

func fromOperationJSON(oj operationJSON) (ir.Operation, error) {
	op := ir.Operation{OpID: oj.OpID, GlobalOpID: oj.GlobalOpID, LoopLevel: oj.LoopLevel, Deps: oj.Deps}
	switch oj.OpType {
	case "compute":
		op.OpType = ir.OpCompute
		op.Compute = &ir.ComputePayload{OpName: oj.OperationName, Target: oj.Target, Sources: oj.Sources, Destinations: oj.Destinations}
	case "configure":
		op.OpType = ir.OpConfigure
		op.Configure = &ir.ConfigurePayload{StartOrFinish: oj.StartOrFinish, Target: oj.Target}
	case "transfer":
		op.OpType = ir.OpTransfer
		ref := 0
		if oj.Operand != nil {
			ref = *oj.Operand
		}
		op.Transfer = &ir.TransferPayload{OperandRef: ref, Path: oj.Path, Offsets: oj.Offsets, Sizes: oj.Sizes}
	case "loop":
		op.OpType = ir.OpLoop
		op.Loop = &ir.LoopPayload{Dim: oj.Dim, IterCount: oj.IterCount, Start: oj.Start, End: oj.End, Stride: oj.Stride, Level: oj.LoopLevel}
	default:
		return op, fmt.Errorf("serialize: op %d: unknown op_type %q", oj.OpID, oj.OpType)
	}
	return op, nil
}

func toDimShapeJSON(m map[string]ir.DimShape) map[string]dimShapeJSON {
	if m == nil {
		return nil
	}
	out := make(map[string]dimShapeJSON, len(m))
	for k, v := range m {
		out[k] = dimShapeJSON{Loop: v.Loop, Static: v.Static, DrivenByLoop: v.DrivenByLoop}
	}
	return out
}

func fromDimShapeJSON(m map[string]dimShapeJSON) map[string]ir.DimShape {
	if m == nil {
		return nil
	}
	out := make(map[string]ir.DimShape, len(m))
	for k, v := range m {
		out[k] = ir.DimShape{Loop: v.Loop, Static: v.Static, DrivenByLoop: v.DrivenByLoop}
	}
	return out
}

// MarshalJSON renders cdlt into the exact-field-name artifact document
// spec §6 requires.
func MarshalJSON(cdlt *ir.Codelet) ([]byte, error) {
	cj := CodeletJSON{
		ID: cdlt.ID, InstanceID: cdlt.InstanceID, Dims: cdlt.Dims, Params: cdlt.Params,
		DomainLoop: cdlt.DomainLoop, DomainTiling: cdlt.DomainTiling,
	}
	for _, o := range cdlt.Operands {
		cj.Operands = append(cj.Operands, operandJSON{
			Name: o.Name, Role: o.Role, DtypeBits: o.DtypeBits, Shape: o.Shape,
			Layout: o.Layout, DataPath: o.DataPath, Moves: o.Moves,
			Tiling: o.Tiling, Offsets: o.Offsets,
		})
	}
	for _, m := range cdlt.Movements {
		cj.Movements = append(cj.Movements, movementJSON{
			SrcNode: m.SrcNode, DstNode: m.DstNode, OperandRef: m.OperandRef,
			OffsetMap: m.OffsetMap, ShapeMap: toDimShapeJSON(m.ShapeMap),
		})
	}
	for _, op := range cdlt.Ops {
		oj, err := toOperationJSON(op)
		if err != nil {
			return nil, err
		}
		cj.Ops = append(cj.Ops, oj)
	}
	data, err := json.MarshalIndent(cj, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize: marshaling codelet %s: %w", cdlt.ID, err)
	}
	return data, nil
}

// UnmarshalJSON reconstructs a codelet from the document MarshalJSON
// produces.
func UnmarshalJSON(data []byte) (*ir.Codelet, error) {
	var cj CodeletJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, fmt.Errorf("serialize: parsing codelet JSON: %w", err)
	}

	cdlt := ir.NewCodelet(cj.ID, cj.InstanceID)
	cdlt.Dims = cj.Dims
	if cj.Params != nil {
		cdlt.Params = cj.Params
	}
	if cj.DomainLoop != nil {
		cdlt.DomainLoop = cj.DomainLoop
	}
	if cj.DomainTiling != nil {
		cdlt.DomainTiling = cj.DomainTiling
	}

	for _, o := range cj.Operands {
		cdlt.Operands = append(cdlt.Operands, ir.Operand{
			Name: o.Name, Role: o.Role, DtypeBits: o.DtypeBits, Shape: o.Shape,
			Layout: o.Layout, DataPath: o.DataPath, Moves: o.Moves,
			Tiling: o.Tiling, Offsets: o.Offsets,
		})
	}
	for _, m := range cj.Movements {
		cdlt.Movements = append(cdlt.Movements, ir.DataMovement{
			SrcNode: m.SrcNode, DstNode: m.DstNode, OperandRef: m.OperandRef,
			OffsetMap: m.OffsetMap, ShapeMap: fromDimShapeJSON(m.ShapeMap),
		})
	}
	for _, oj := range cj.Ops {
		op, err := fromOperationJSON(oj)
		if err != nil {
			return nil, err
		}
		cdlt.Ops = append(cdlt.Ops, op)
	}
	return cdlt, nil
}
