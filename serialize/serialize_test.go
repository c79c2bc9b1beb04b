package serialize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"codeletc/ir"
)

func sampleCodelet() *ir.Codelet {
	cdlt := ir.NewCodelet("elem_add0", 0)
	cdlt.Dims = []string{"D"}
	cdlt.DomainLoop[0] = map[string]int{"D": 8}

	x := cdlt.AddOperand(ir.Operand{Name: "x", Role: "activation", Shape: map[string]int{"D": 8}, DataPath: []string{"dram", "simd_unit"}})
	y := cdlt.AddOperand(ir.Operand{Name: "y", Role: "activation", Shape: map[string]int{"D": 8}, DataPath: []string{"dram", "simd_unit"}})
	z := cdlt.AddOperand(ir.Operand{Name: "z", Role: "output", Shape: map[string]int{"D": 8}, DataPath: []string{"dram", "simd_unit"}})
	cdlt.Operands[x].SetSizeFromSplits("simd_unit", map[string]int{"D": 8})
	cdlt.Operands[y].SetSizeFromSplits("simd_unit", map[string]int{"D": 8})
	cdlt.Operands[z].SetSizeFromSplits("simd_unit", map[string]int{"D": 8})

	cdlt.AddMovement(ir.DataMovement{SrcNode: "dram", DstNode: "simd_unit", OperandRef: x, ShapeMap: map[string]ir.DimShape{"D": {Loop: "D", DrivenByLoop: true}}})

	loopIdx := cdlt.InsertOp(ir.NewLoop(ir.LoopPayload{Dim: "D", IterCount: 8, End: 8, Stride: 1}, 0), -1)
	transferIdx := cdlt.InsertOp(ir.NewTransfer(ir.TransferPayload{OperandRef: x, Path: []string{"dram", "simd_unit"}}, 1), -1)
	cdlt.Ops[transferIdx].DependsOn(cdlt.Ops[loopIdx].OpID)
	computeIdx := cdlt.InsertOp(ir.NewCompute(ir.ComputePayload{
		OpName: "elem_add", Target: "simd_unit", Sources: []int{x, y}, Destinations: []int{z},
	}, 1), -1)
	cdlt.Ops[computeIdx].DependsOn(cdlt.Ops[transferIdx].OpID)

	return cdlt
}

func TestWriteOperationsText_ComputeLineMatchesFormat(t *testing.T) {
	cdlt := sampleCodelet()
	var sb strings.Builder
	require.NoError(t, WriteOperationsText(&sb, cdlt))

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	last := lines[2]
	require.True(t, strings.HasPrefix(last, "op3: compute: SIMD-elem_add(["))
	require.True(t, strings.HasSuffix(last, "])->[z]"))
}

func TestJSONRoundTrip_PreservesOpsDepsTilings(t *testing.T) {
	cdlt := sampleCodelet()
	data, err := MarshalJSON(cdlt)
	require.NoError(t, err)

	got, err := UnmarshalJSON(data)
	require.NoError(t, err)

	require.Equal(t, len(cdlt.Ops), len(got.Ops))
	for i := range cdlt.Ops {
		require.Equal(t, cdlt.Ops[i].OpID, got.Ops[i].OpID)
		require.Equal(t, cdlt.Ops[i].OpType, got.Ops[i].OpType)
		require.Equal(t, cdlt.Ops[i].Deps, got.Ops[i].Deps)
		require.Equal(t, cdlt.Ops[i].LoopLevel, got.Ops[i].LoopLevel)
	}
	require.Equal(t, len(cdlt.Operands), len(got.Operands))
	for i := range cdlt.Operands {
		require.Equal(t, cdlt.Operands[i].Tiling, got.Operands[i].Tiling)
	}
	require.NoError(t, got.CheckDependencyOrder())
}
