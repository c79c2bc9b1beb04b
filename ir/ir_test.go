package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"codeletc/hag"
)

func buildTestGraph(t *testing.T) *hag.Graph {
	t.Helper()
	b := hag.NewBuilder("device")
	_, err := b.AddNode("dram", hag.KindStorage, hag.WithCapacity(1<<30))
	require.NoError(t, err)
	cluster, err := b.Open("cluster0")
	require.NoError(t, err)
	_, err = cluster.AddNode("ibuf", hag.KindStorage, hag.WithCapacity(1<<20))
	require.NoError(t, err)
	_, err = cluster.AddNode("pe_array", hag.KindCompute, hag.WithDims(16, 16), hag.WithCapabilities("gemm"))
	require.NoError(t, err)
	_, err = cluster.Seal()
	require.NoError(t, err)
	g, err := b.Finalize()
	require.NoError(t, err)
	return g
}

func TestOperand_IsTiledAndCheckTiled(t *testing.T) {
	o := Operand{Name: "x", DataPath: []string{"dram", "ibuf"}}
	require.False(t, o.IsTiled())
	require.Error(t, o.CheckTiled())

	o.SetSizeFromSplits("dram", map[string]int{"M": 64})
	require.False(t, o.IsTiled())

	o.SetSizeFromSplits("ibuf", map[string]int{"M": 16})
	require.True(t, o.IsTiled())
	require.NoError(t, o.CheckTiled())
}

func TestDataMovement_GetSizeFromSplits(t *testing.T) {
	cdlt := NewCodelet("gemm0", 0)
	cdlt.DomainLoop[0] = map[string]int{"M": 64, "N": 64}

	dm := DataMovement{
		SrcNode: "dram",
		DstNode: "ibuf",
		ShapeMap: map[string]DimShape{
			"M": {Loop: "M", DrivenByLoop: true},
			"K": {Static: 64},
		},
	}

	sizes := dm.GetSizeFromSplits(cdlt, map[string]int{"M": 4})
	require.Equal(t, 16, sizes["M"])
	require.Equal(t, 64, sizes["K"])
}

func TestCodelet_InsertOpAssignsMonotonicIDs(t *testing.T) {
	c := NewCodelet("c0", 0)
	i0 := c.InsertOp(NewLoop(LoopPayload{IterCount: 4, End: 4, Stride: 1}, 0), -1)
	i1 := c.InsertOp(NewCompute(ComputePayload{OpName: "gemm", Target: "pe_array"}, 0), -1)
	require.Equal(t, 1, c.Ops[i0].OpID)
	require.Equal(t, 2, c.Ops[i1].OpID)
	require.NoError(t, c.CheckDependencyOrder())

	c.Ops[i1].DependsOn(c.Ops[i0].OpID)
	require.NoError(t, c.CheckDependencyOrder())
}

func TestCodelet_CheckDependencyOrder_RejectsForwardReference(t *testing.T) {
	c := NewCodelet("c0", 0)
	i0 := c.InsertOp(NewLoop(LoopPayload{IterCount: 4, End: 4}, 0), -1)
	c.Ops[i0].DependsOn(99)
	require.Error(t, c.CheckDependencyOrder())
}

func TestCodelet_ExtractBands(t *testing.T) {
	c := NewCodelet("c0", 0)
	c.InsertOp(NewLoop(LoopPayload{End: 4}, 0), -1)
	c.InsertOp(NewLoop(LoopPayload{End: 4}, 1), -1)
	c.InsertOp(NewCompute(ComputePayload{OpName: "gemm"}, 1), -1)
	c.InsertOp(NewLoop(LoopPayload{End: 4}, 0), -1)

	bands := c.ExtractBands()
	require.Len(t, bands, 3)
	require.Equal(t, Band{Start: 0, End: 1, Level: 0}, bands[0])
	require.Equal(t, Band{Start: 1, End: 3, Level: 1}, bands[1])
	require.Equal(t, Band{Start: 3, End: 4, Level: 0}, bands[2])
}

func TestCodelet_SetTileLevels(t *testing.T) {
	g := buildTestGraph(t)
	c := NewCodelet("gemm0", 0)
	c.Operands = []Operand{
		{Name: "x", DataPath: []string{"dram", "ibuf"}},
	}

	require.NoError(t, c.SetTileLevels(g))

	dramLevel, ok := c.GetTileLevel("dram")
	require.True(t, ok)
	ibufLevel, ok := c.GetTileLevel("ibuf")
	require.True(t, ok)
	require.Equal(t, 0, dramLevel)
	require.Equal(t, 1, ibufLevel)
	require.Equal(t, 1, c.MaxTileLevel(&c.Operands[0]))
}

// TestCodelet_SetTileLevels_SiblingDepthDoesNotLeak builds a HAG where one
// operand's compute-adjacent buffer sits one composite tier deeper than
// another operand's, purely because of unrelated nesting elsewhere in the
// tree. A flat depth-from-root dense rank would charge the deeper operand
// an extra tile level it never actually splits; the per-operand upward
// walk must not.
func TestCodelet_SetTileLevels_SiblingDepthDoesNotLeak(t *testing.T) {
	b := hag.NewBuilder("device")

	clusterA, err := b.Open("clusterA")
	require.NoError(t, err)
	_, err = clusterA.AddNode("bufA", hag.KindStorage, hag.WithCapacity(1<<20))
	require.NoError(t, err)
	_, err = clusterA.AddNode("peA", hag.KindCompute, hag.WithDims(16, 16), hag.WithCapabilities("gemm"))
	require.NoError(t, err)
	_, err = clusterA.Seal()
	require.NoError(t, err)

	clusterB, err := b.Open("clusterB")
	require.NoError(t, err)
	subB, err := clusterB.Open("subB")
	require.NoError(t, err)
	_, err = subB.AddNode("bufB", hag.KindStorage, hag.WithCapacity(1<<20))
	require.NoError(t, err)
	_, err = subB.AddNode("peB", hag.KindCompute, hag.WithDims(16, 16), hag.WithCapabilities("gemm"))
	require.NoError(t, err)
	_, err = subB.Seal()
	require.NoError(t, err)
	_, err = clusterB.Seal()
	require.NoError(t, err)

	g, err := b.Finalize()
	require.NoError(t, err)

	c := NewCodelet("gemm1", 0)
	c.Operands = []Operand{
		{Name: "x", DataPath: []string{"bufA", "peA"}},
		{Name: "y", DataPath: []string{"bufB", "peB"}},
	}

	require.NoError(t, c.SetTileLevels(g))

	bufALevel, ok := c.GetTileLevel("bufA")
	require.True(t, ok)
	peALevel, ok := c.GetTileLevel("peA")
	require.True(t, ok)
	bufBLevel, ok := c.GetTileLevel("bufB")
	require.True(t, ok)
	peBLevel, ok := c.GetTileLevel("peB")
	require.True(t, ok)

	require.Equal(t, 0, bufALevel)
	require.Equal(t, 0, peALevel)
	require.Equal(t, 0, bufBLevel)
	require.Equal(t, 0, peBLevel)
	require.Equal(t, 0, c.MaxTileLevel(&c.Operands[0]))
	require.Equal(t, 0, c.MaxTileLevel(&c.Operands[1]))
}
