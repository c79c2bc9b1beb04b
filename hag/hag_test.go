package hag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSmallGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder("device")

	composite, err := b.Open("cluster0")
	require.NoError(t, err)

	_, err = composite.AddNode("pe_array", KindCompute, WithDims(16, 16), WithCapabilities("gemm", "conv"))
	require.NoError(t, err)

	_, err = composite.AddNode("ibuf", KindStorage, WithCapacity(1<<20))
	require.NoError(t, err)

	require.NoError(t, composite.AddEdge("ibuf", "pe_array", 2048, nil))

	_, err = composite.Seal()
	require.NoError(t, err)

	g, err := b.Finalize()
	require.NoError(t, err)
	return g
}

func TestBuilder_SealRejectsFurtherMutation(t *testing.T) {
	b := NewBuilder("device")
	child, err := b.Open("cluster0")
	require.NoError(t, err)
	_, err = child.AddNode("pe_array", KindCompute)
	require.NoError(t, err)

	_, err = child.Seal()
	require.NoError(t, err)

	_, err = child.AddNode("extra", KindStorage)
	require.ErrorIs(t, err, ErrSealedGraph)

	err = child.AddEdge("pe_array", "pe_array", 1, nil)
	require.ErrorIs(t, err, ErrSealedGraph)
}

func TestBuilder_DuplicateNameRejected(t *testing.T) {
	b := NewBuilder("device")
	_, err := b.AddNode("pe_array", KindCompute)
	require.NoError(t, err)
	_, err = b.AddNode("pe_array", KindCompute)
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestGraph_FlatLookupAndCapabilities(t *testing.T) {
	g := buildSmallGraph(t)

	n, ok := g.Node("pe_array")
	require.True(t, ok)
	require.Equal(t, KindCompute, n.Kind)
	require.True(t, g.IsCompatible("pe_array", "gemm"))
	require.False(t, g.IsCompatible("pe_array", "pool"))

	e, ok := g.Edge("ibuf", "pe_array")
	require.True(t, ok)
	require.Equal(t, int64(2048), e.BandwidthBits)
}

func TestGraph_SetOccupied_OverlapDetection(t *testing.T) {
	g := buildSmallGraph(t)

	require.NoError(t, g.SetOccupied("pe_array", 1, "gemm", 0, 10))
	err := g.SetOccupied("pe_array", 2, "gemm", 5, 7)
	require.ErrorIs(t, err, ErrOverlap)

	// Adjacent intervals do not overlap (strict-inequality predicate).
	require.NoError(t, g.SetOccupied("pe_array", 3, "gemm", 10, 20))
}

func TestGraph_SetOccupied_PermutationOrderIndependence(t *testing.T) {
	intervals := [][2]int64{{0, 10}, {20, 30}, {5, 7}, {10, 20}}
	// Every insertion order must catch exactly the one overlap:
	// [5,7) inside [0,10).
	var permute func(k int)
	permute = func(k int) {
		if k == len(intervals) {
			g := buildSmallGraph(t)
			var errs []error
			for i, iv := range intervals {
				if err := g.SetOccupied("pe_array", i, "gemm", iv[0], iv[1]); err != nil {
					errs = append(errs, err)
				}
			}
			require.Len(t, errs, 1, "order %v", intervals)
			require.ErrorIs(t, errs[0], ErrOverlap)
			return
		}
		for i := k; i < len(intervals); i++ {
			intervals[k], intervals[i] = intervals[i], intervals[k]
			permute(k + 1)
			intervals[k], intervals[i] = intervals[i], intervals[k]
		}
	}
	permute(0)
}
