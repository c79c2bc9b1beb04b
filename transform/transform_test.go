package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"codeletc/compiler"
	"codeletc/hag"
	"codeletc/ir"
)

func TestTemplateLayoutPass_PermutesConvLayouts(t *testing.T) {
	cdlt := ir.NewCodelet("conv0", 0)
	cdlt.Params["operator"] = "conv"
	cdlt.Operands = []ir.Operand{
		{Name: "x", Role: "activation", Layout: []string{"N", "C", "H", "W"}},
		{Name: "w", Role: "weight", Layout: []string{"Cout", "Cin", "KH", "KW"}},
	}

	require.NoError(t, TemplateLayoutPass(&compiler.Context{}, cdlt))
	require.Equal(t, []string{"N", "H", "W", "C"}, cdlt.Operands[0].Layout)
	require.Equal(t, []string{"KH", "KW", "Cout", "Cin"}, cdlt.Operands[1].Layout)
}

func TestPadOperands_ConvPadsActivationHW(t *testing.T) {
	cdlt := ir.NewCodelet("conv0", 0)
	cdlt.Params["operator"] = "conv"
	cdlt.Params["pad"] = 1
	cdlt.Operands = []ir.Operand{
		{Name: "x", Role: "activation", Shape: map[string]int{"IH": 30, "IW": 30}},
	}

	require.NoError(t, PadOperands(&compiler.Context{}, cdlt))
	require.Equal(t, 32, cdlt.Operands[0].Shape["IH"])
	require.Equal(t, 32, cdlt.Operands[0].Shape["IW"])
}

func TestPadOperands_GemmRoundsToArrayDims(t *testing.T) {
	cdlt := ir.NewCodelet("gemm0", 0)
	cdlt.Params["operator"] = "gemm_no_bias"
	cdlt.Params["array_m"] = 16
	cdlt.Params["array_n"] = 16
	cdlt.Operands = []ir.Operand{
		{Name: "out", Shape: map[string]int{"M": 50, "K": 50, "N": 50}},
	}

	require.NoError(t, PadOperands(&compiler.Context{}, cdlt))
	require.Equal(t, 64, cdlt.Operands[0].Shape["M"])
	require.Equal(t, 64, cdlt.Operands[0].Shape["K"])
	require.Equal(t, 64, cdlt.Operands[0].Shape["N"])
}

func TestPadOperands_UnhandledOperator(t *testing.T) {
	cdlt := ir.NewCodelet("mystery0", 0)
	cdlt.Params["operator"] = "mystery"

	err := PadOperands(&compiler.Context{}, cdlt)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnhandledOperator))
}

func TestPadOperands_BinarySimdBroadcastMismatch(t *testing.T) {
	cdlt := ir.NewCodelet("add0", 0)
	cdlt.Params["operator"] = "binary_simd"
	cdlt.Operands = []ir.Operand{
		{Name: "a", Shape: map[string]int{"D": 8}},
		{Name: "b", Shape: map[string]int{"D": 4}},
	}

	err := PadOperands(&compiler.Context{}, cdlt)
	require.Error(t, err)
	var mismatch *ShapeMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestUpdateOperandDtypes_SystolicVsSimd(t *testing.T) {
	dtypeMap := map[string]map[string]int{
		"SYSTOLIC_ARRAY": {"inp_weight": 8, "bias_out": 32},
		"SIMD":           {"default": 32},
	}

	gemm := ir.NewCodelet("gemm0", 0)
	gemm.Params["operator"] = "gemm"
	gemm.Params["dtype_map"] = dtypeMap
	gemm.Operands = []ir.Operand{
		{Name: "w", Role: "weight"},
		{Name: "b", Role: "bias"},
	}
	require.NoError(t, UpdateOperandDtypes(&compiler.Context{}, gemm))
	require.Equal(t, 8, gemm.Operands[0].DtypeBits)
	require.Equal(t, 32, gemm.Operands[1].DtypeBits)

	relu := ir.NewCodelet("relu0", 0)
	relu.Params["operator"] = "relu"
	relu.Params["dtype_map"] = dtypeMap
	relu.Operands = []ir.Operand{{Name: "x"}}
	require.NoError(t, UpdateOperandDtypes(&compiler.Context{}, relu))
	require.Equal(t, 32, relu.Operands[0].DtypeBits)
}

func TestAddSimdTypecast_InsertsCastBetweenDomains(t *testing.T) {
	cdlt := ir.NewCodelet("mixed0", 0)
	cdlt.Params["dtype_map"] = map[string]map[string]int{
		"SYSTOLIC_ARRAY": {"default": 8},
		"SIMD":           {"default": 32},
	}
	ref := cdlt.AddOperand(ir.Operand{Name: "t"})

	i0 := cdlt.InsertOp(ir.NewCompute(ir.ComputePayload{OpName: "gemm", Target: "pe_array", Destinations: []int{ref}}, 0), -1)
	i1 := cdlt.InsertOp(ir.NewCompute(ir.ComputePayload{OpName: "relu", Target: "simd_unit", Sources: []int{ref}}, 0), -1)
	cdlt.Ops[i1].DependsOn(cdlt.Ops[i0].OpID)

	before := len(cdlt.Ops)
	require.NoError(t, AddSimdTypecast(&compiler.Context{}, cdlt))
	require.Equal(t, before+1, len(cdlt.Ops))
	require.NoError(t, cdlt.CheckDependencyOrder())
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	b := hag.NewBuilder("device")
	_, err := b.AddNode("dram", hag.KindStorage, hag.WithCapacity(1<<40))
	require.NoError(t, err)
	cluster, err := b.Open("cluster0")
	require.NoError(t, err)
	_, err = cluster.AddNode("ibuf", hag.KindStorage, hag.WithCapacity(1<<40))
	require.NoError(t, err)
	_, err = cluster.AddNode("pe_array", hag.KindCompute, hag.WithDims(16, 16), hag.WithCapabilities("gemm"))
	require.NoError(t, err)
	_, err = cluster.Seal()
	require.NoError(t, err)
	require.NoError(t, b.AddEdge("dram", "ibuf", 1<<40, nil))
	require.NoError(t, b.AddEdge("ibuf", "pe_array", 128, nil))
	g, err := b.Finalize()
	require.NoError(t, err)

	cdlt := ir.NewCodelet("gemm0", 0)
	cdlt.Dims = []string{"M", "N"}
	cdlt.DomainLoop[0] = map[string]int{"M": 16, "N": 16}
	cdlt.Params["operator"] = "gemm"
	cdlt.Params["array_m"] = 16
	cdlt.Params["array_n"] = 16
	cdlt.Params["dtype_map"] = map[string]map[string]int{
		"SYSTOLIC_ARRAY": {"inp_weight": 8, "bias_out": 32},
		"SIMD":           {"default": 32},
	}

	ref := cdlt.AddOperand(ir.Operand{
		Name:     "out",
		Role:     "weight",
		Shape:    map[string]int{"M": 16, "N": 16},
		DataPath: []string{"dram", "ibuf", "pe_array"},
	})
	cdlt.AddMovement(ir.DataMovement{
		SrcNode: "dram", DstNode: "ibuf", OperandRef: ref,
		ShapeMap: map[string]ir.DimShape{
			"M": {Loop: "M", DrivenByLoop: true},
			"N": {Loop: "N", DrivenByLoop: true},
		},
	})
	cdlt.AddMovement(ir.DataMovement{
		SrcNode: "ibuf", DstNode: "pe_array", OperandRef: ref,
		ShapeMap: map[string]ir.DimShape{
			"M": {Loop: "M", DrivenByLoop: true},
			"N": {Loop: "N", DrivenByLoop: true},
		},
	})
	cdlt.InsertOp(ir.NewLoop(ir.LoopPayload{Dim: "M", IterCount: 16, End: 16, Stride: 1}, 0), -1)
	cIdx := cdlt.InsertOp(ir.NewCompute(ir.ComputePayload{OpName: "gemm", Target: "pe_array", Sources: []int{ref}, Destinations: []int{ref}}, 0), -1)
	cdlt.Ops[cIdx].DependsOn(cdlt.Ops[cIdx-1].OpID)

	ctx := compiler.NewContext("demo", g, nil)
	require.NoError(t, RunPipeline(ctx, cdlt))
	require.NoError(t, cdlt.CheckDependencyOrder())
	require.True(t, cdlt.Operands[ref].IsTiled())
}
