package compiler

import (
	"fmt"

	"codeletc/hag"
	"codeletc/ir"
)

// Tensor is one operand as described by the upstream operator graph:
// a name, an ordered shape, and an optional declared dtype width. A
// zero shape entry is carried into the operand's shape as zero; no
// pass, pad_operands included, replaces it with a concrete size.
type Tensor struct {
	Name      string
	Shape     []int
	DtypeBits int // 0 means unset; update_operand_dtypes fills it in
}

// OperatorNode is one node of the upstream operator DAG: an operator
// kind, its input/output tensors, and free-form attributes (pad,
// stride, kernel_size, transA, ...).
type OperatorNode struct {
	OpName  string
	Inputs  []Tensor
	Outputs []Tensor
	Kwargs  map[string]any
}

// HAGSpec is the upstream's tree-plus-edges description of a hardware
// architecture graph, mirroring spec §6's "HAG input": a node tree of
// (name, kind, capacity|dims, capabilities, children) plus a flat edge
// list. BuildGraph realizes it through hag.Builder.
type HAGSpec struct {
	Root  HAGNodeSpec
	Edges []HAGEdgeSpec
}

// HAGNodeSpec is one node in a HAGSpec's tree.
type HAGNodeSpec struct {
	Name         string
	Kind         hag.NodeKind
	Capacity     int64
	DimsM, DimsN int
	Capabilities []string
	Children     []HAGNodeSpec
}

// HAGEdgeSpec is one edge in a HAGSpec's flat edge list.
type HAGEdgeSpec struct {
	Src, Dst      string
	BandwidthBits int64
	Attrs         map[string]any
}

// BuildGraph realizes spec through hag.Builder, honoring the one
// HAG-per-compile scope: spec.Root becomes the builder's root, and
// every child is opened/sealed in tree order.
func BuildGraph(spec HAGSpec) (*hag.Graph, error) {
	b := hag.NewBuilder(spec.Root.Name)
	if err := addChildren(b, spec.Root.Children); err != nil {
		return nil, err
	}
	for _, e := range spec.Edges {
		if err := b.AddEdge(e.Src, e.Dst, e.BandwidthBits, e.Attrs); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

func addChildren(b *hag.Builder, children []HAGNodeSpec) error {
	for _, c := range children {
		opts := []hag.NodeOption{hag.WithCapacity(c.Capacity)}
		if c.DimsM != 0 || c.DimsN != 0 {
			opts = append(opts, hag.WithDims(c.DimsM, c.DimsN))
		}
		if len(c.Capabilities) > 0 {
			opts = append(opts, hag.WithCapabilities(c.Capabilities...))
		}
		if len(c.Children) == 0 {
			if _, err := b.AddNode(c.Name, c.Kind, opts...); err != nil {
				return err
			}
			continue
		}
		child, err := b.Open(c.Name, opts...)
		if err != nil {
			return err
		}
		if err := addChildren(child, c.Children); err != nil {
			return err
		}
		if _, err := child.Seal(); err != nil {
			return err
		}
	}
	return nil
}

// CodeletTemplate is a reusable blueprint bound to one HAG capability:
// the loop dimensions, the data path every operand travels, and the
// compute target every instantiated codelet issues its compute op
// against.
type CodeletTemplate struct {
	OpName     string
	Dims       []string
	DataPath   []string
	Target     string
	InputRole  string
	OutputRole string
	Params     map[string]any
}

// Instantiate binds tmpl to node's concrete tensors against h,
// producing a fresh codelet with an initial op skeleton: one nested
// loop per dim, one transfer per DataPath hop for each operand, and one
// compute op at Target consuming every input and producing every
// output. Every inserted op's GlobalOpID is drawn from ctx's
// program-wide counter, so it diverges from the codelet-local OpID as
// soon as a second codelet is instantiated under the same ctx.
func Instantiate(ctx *Context, tmpl *CodeletTemplate, node OperatorNode, h *hag.Graph, instanceID int) (*ir.Codelet, error) {
	if !h.IsCompatible(tmpl.Target, node.OpName) {
		return nil, fmt.Errorf("compiler: node %q: %s is not capable of %q", tmpl.Target, tmpl.Target, node.OpName)
	}

	cdlt := ir.NewCodelet(fmt.Sprintf("%s_%d", node.OpName, instanceID), instanceID)
	cdlt.Dims = append([]string{}, tmpl.Dims...)
	for k, v := range tmpl.Params {
		cdlt.Params[k] = v
	}
	for k, v := range node.Kwargs {
		cdlt.Params[k] = v
	}
	cdlt.Params["operator"] = node.OpName

	domain := make(map[string]int, len(tmpl.Dims))
	var sources, destinations []int

	for _, t := range node.Inputs {
		ref := addOperandFromTensor(cdlt, t, tmpl, tmpl.InputRole, domain)
		sources = append(sources, ref)
	}
	for _, t := range node.Outputs {
		ref := addOperandFromTensor(cdlt, t, tmpl, tmpl.OutputRole, domain)
		destinations = append(destinations, ref)
	}
	cdlt.DomainLoop[0] = domain

	var prevLoopID int
	for i, d := range cdlt.Dims {
		payload := ir.LoopPayload{Dim: d, IterCount: domain[d], End: domain[d], Stride: 1}
		idx := insertOp(ctx, cdlt, ir.NewLoop(payload, i), -1)
		if i > 0 {
			cdlt.Ops[idx].DependsOn(prevLoopID)
		}
		prevLoopID = cdlt.Ops[idx].OpID
	}

	level := len(cdlt.Dims)
	for _, ref := range append(append([]int{}, sources...), destinations...) {
		addTransferChain(ctx, cdlt, ref, tmpl.DataPath, level, prevLoopID)
	}

	computeIdx := insertOp(ctx, cdlt, ir.NewCompute(ir.ComputePayload{
		OpName: node.OpName, Target: tmpl.Target, Sources: sources, Destinations: destinations,
	}, level), -1)
	cdlt.Ops[computeIdx].DependsOn(prevLoopID)

	return cdlt, nil
}

// insertOp inserts op into cdlt, stamping its GlobalOpID from ctx's
// program-wide counter before the codelet-local InsertOp assigns the
// per-codelet OpID.
func insertOp(ctx *Context, cdlt *ir.Codelet, op ir.Operation, idx int) int {
	op.GlobalOpID = int(ctx.NextGlobalOpID())
	return cdlt.InsertOp(op, idx)
}

func addOperandFromTensor(cdlt *ir.Codelet, t Tensor, tmpl *CodeletTemplate, role string, domain map[string]int) int {
	shape := make(map[string]int, len(t.Shape))
	layout := make([]string, 0, len(t.Shape))
	for i, sz := range t.Shape {
		name := fmt.Sprintf("d%d", i)
		if i < len(tmpl.Dims) {
			name = tmpl.Dims[i]
		}
		shape[name] = sz
		layout = append(layout, name)
		if _, ok := domain[name]; !ok {
			domain[name] = sz
		}
	}
	return cdlt.AddOperand(ir.Operand{
		Name: t.Name, Role: role, DtypeBits: t.DtypeBits,
		Shape: shape, Layout: layout,
		DataPath: append([]string{}, tmpl.DataPath...),
	})
}

func addTransferChain(ctx *Context, cdlt *ir.Codelet, operandRef int, path []string, level, dep int) {
	if len(path) < 2 {
		return
	}
	shapeMap := make(map[string]ir.DimShape, len(cdlt.Dims))
	for _, d := range cdlt.Dims {
		shapeMap[d] = ir.DimShape{Loop: d, DrivenByLoop: true}
	}
	for i := 0; i+1 < len(path); i++ {
		cdlt.AddMovement(ir.DataMovement{
			SrcNode: path[i], DstNode: path[i+1], OperandRef: operandRef, ShapeMap: shapeMap,
		})
		tp := ir.TransferPayload{OperandRef: operandRef, Path: []string{path[i], path[i+1]}}
		idx := insertOp(ctx, cdlt, ir.NewTransfer(tp, level), -1)
		cdlt.Ops[idx].DependsOn(dep)
	}
}
