package compiler

import (
	"fmt"

	"codeletc/hag"
	"codeletc/ir"
)

// CompileMode selects how Program.Compile reacts to a failing codelet.
type CompileMode int

const (
	// ModeStrict aborts the whole compilation on the first codelet
	// that fails any pass.
	ModeStrict CompileMode = iota
	// ModeFiltered continues past codelets whose id is not in the
	// caller-supplied filter set, recording their failure instead of
	// aborting the program.
	ModeFiltered
)

// PipelineFunc runs the full transformation pipeline against one
// codelet. Program depends on this function value rather than
// importing the transform package directly, so transform (which
// depends on compiler.Context) and compiler never form an import
// cycle; cmd/codeletc wires transform.RunPipeline in.
type PipelineFunc func(ctx *Context, cdlt *ir.Codelet) error

// Program is an ordered set of codelets to compile against one HAG.
type Program struct {
	Codelets []*ir.Codelet
	Pipeline PipelineFunc
}

// CodeletResult is one codelet's outcome under Program.Compile.
type CodeletResult struct {
	CodeletID string
	Err       error
}

// Result is the outcome of compiling an entire Program.
type Result struct {
	Codelets []CodeletResult
}

// Failed reports whether any codelet in the result failed.
func (r *Result) Failed() bool {
	for _, c := range r.Codelets {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Compile runs p.Pipeline against every codelet in p.Codelets, in
// order. In ModeStrict the first failure aborts the whole compilation
// and filter is ignored. In ModeFiltered a failing codelet whose id is
// in filter also aborts the compilation, while a failing codelet
// outside filter (every codelet, when filter is nil) has its failure
// recorded in the Result and compilation continues with the next one.
func (p *Program) Compile(ctx *Context, h *hag.Graph, mode CompileMode, filter map[string]bool) (*Result, error) {
	if p.Pipeline == nil {
		return nil, fmt.Errorf("compiler: program has no Pipeline set")
	}
	ctx.Graph = h

	result := &Result{}
	for _, cdlt := range p.Codelets {
		err := p.Pipeline(ctx, cdlt)
		if err != nil {
			ctx.Logger.Error("codelet compilation failed", "codelet", cdlt.ID, "err", err)
			if mode == ModeStrict || filter[cdlt.ID] {
				return result, fmt.Errorf("compiler: codelet %s: %w", cdlt.ID, err)
			}
		}
		result.Codelets = append(result.Codelets, CodeletResult{CodeletID: cdlt.ID, Err: err})
	}
	return result, nil
}
