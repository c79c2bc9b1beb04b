package hag

import "fmt"

// Graph is the sealed, immutable hardware architecture graph produced by
// Builder.Finalize. Node/edge topology never changes after construction;
// only each Node's occupancy schedule mutates, via SetOccupied.
type Graph struct {
	root        *Node
	byName      map[string]*Node
	byIndex     map[int]*Node
	edgesByPair map[[2]int]*Edge
}

// Root returns the graph's root composite node.
func (g *Graph) Root() *Node {
	return g.root
}

// Node looks up a node by name in the flat, all-nodes closure.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// NodeByIndex looks up a node by its stable index.
func (g *Graph) NodeByIndex(idx int) (*Node, bool) {
	n, ok := g.byIndex[idx]
	return n, ok
}

// Edge looks up the edge from src to dst by node name.
func (g *Graph) Edge(srcName, dstName string) (*Edge, bool) {
	src, ok := g.byName[srcName]
	if !ok {
		return nil, false
	}
	dst, ok := g.byName[dstName]
	if !ok {
		return nil, false
	}
	e, ok := g.edgesByPair[[2]int{src.Index, dst.Index}]
	return e, ok
}

// Capabilities returns the capability set of the named node.
func (g *Graph) Capabilities(nodeName string) (map[string]bool, error) {
	n, ok := g.byName[nodeName]
	if !ok {
		return nil, fmt.Errorf("hag: capabilities of %q: %w", nodeName, ErrUnknownNode)
	}
	return n.Capabilities(), nil
}

// IsCompatible reports whether the named node implements opName.
func (g *Graph) IsCompatible(nodeName, opName string) bool {
	n, ok := g.byName[nodeName]
	if !ok {
		return false
	}
	return n.IsCompatible(opName)
}

// SetOccupied records a [begin, end) occupancy interval for op opID
// using capability on the named node. It fails with ErrOverlap if the
// interval overlaps any existing interval already recorded on that
// node; mutation is sequential and all-or-nothing.
func (g *Graph) SetOccupied(nodeName string, opID int, capability string, begin, end int64) error {
	n, ok := g.byName[nodeName]
	if !ok {
		return fmt.Errorf("hag: set occupied on %q: %w", nodeName, ErrUnknownNode)
	}
	candidate := Interval{OpID: opID, Capability: capability, Begin: begin, End: end}
	for _, existing := range n.occupancy {
		if overlaps(existing, candidate) {
			return fmt.Errorf("hag: node %q op %d [%d,%d) overlaps op %d [%d,%d): %w",
				nodeName, opID, begin, end, existing.OpID, existing.Begin, existing.End, ErrOverlap)
		}
	}
	n.occupancy = append(n.occupancy, candidate)
	return nil
}
