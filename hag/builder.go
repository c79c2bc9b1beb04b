package hag

import "fmt"

// state is shared by every Builder in one graph's construction: a single
// node-index counter and a single global name registry, so a name
// collision anywhere in the tree is caught immediately rather than only
// at seal time.
type state struct {
	counter int
	nodes   map[string]*Node
	edges   []Edge
}

// Builder constructs a Graph using the scoped acquisition idiom: Open a
// child builder for a composite node, add its children and edges, then
// Seal it to freeze that node against further mutation. Finalize seals
// the root and returns the immutable Graph.
type Builder struct {
	node   *Node
	parent *Builder
	st     *state
}

// NewBuilder starts construction of a graph whose root composite node
// is named rootName.
func NewBuilder(rootName string) *Builder {
	st := &state{nodes: make(map[string]*Node)}
	root := &Node{Index: 0, Name: rootName, Kind: KindComposite, capabilities: make(map[string]bool)}
	st.nodes[rootName] = root
	return &Builder{node: root, st: st}
}

// AddNode registers a new node under the builder's current scope.
func (b *Builder) AddNode(name string, kind NodeKind, opts ...NodeOption) (*Node, error) {
	if b.node.sealed {
		return nil, fmt.Errorf("hag: add node %q under sealed node %q: %w", name, b.node.Name, ErrSealedGraph)
	}
	if _, exists := b.st.nodes[name]; exists {
		return nil, fmt.Errorf("hag: add node %q: %w", name, ErrDuplicateName)
	}
	b.st.counter++
	n := &Node{
		Index:        b.st.counter,
		Name:         name,
		Kind:         kind,
		parent:       b.node,
		capabilities: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(n)
	}
	b.st.nodes[name] = n
	return n, nil
}

// AddEdge registers a directed edge between two already-added nodes.
func (b *Builder) AddEdge(srcName, dstName string, bandwidthBits int64, attrs map[string]any) error {
	if b.node.sealed {
		return fmt.Errorf("hag: add edge %s->%s under sealed node %q: %w", srcName, dstName, b.node.Name, ErrSealedGraph)
	}
	src, ok := b.st.nodes[srcName]
	if !ok {
		return fmt.Errorf("hag: add edge: src %q: %w", srcName, ErrUnknownNode)
	}
	dst, ok := b.st.nodes[dstName]
	if !ok {
		return fmt.Errorf("hag: add edge: dst %q: %w", dstName, ErrUnknownNode)
	}
	b.st.edges = append(b.st.edges, Edge{Src: src.Index, Dst: dst.Index, BandwidthBits: bandwidthBits, Attrs: attrs})
	return nil
}

// Open acquires a composite child: a fresh node of kind KindComposite
// (unless overridden) and a Builder scoped to it, sharing this
// builder's node/edge registry.
func (b *Builder) Open(name string, opts ...NodeOption) (*Builder, error) {
	n, err := b.AddNode(name, KindComposite, opts...)
	if err != nil {
		return nil, err
	}
	return &Builder{node: n, parent: b, st: b.st}, nil
}

// Seal freezes this builder's node: further AddNode/AddEdge calls
// against it fail with ErrSealedGraph. Seal returns the sealed node.
func (b *Builder) Seal() (*Node, error) {
	if b.node.sealed {
		return nil, fmt.Errorf("hag: seal %q: %w", b.node.Name, ErrSealedGraph)
	}
	b.node.sealed = true
	return b.node, nil
}

// Finalize seals the root and returns the completed, immutable Graph.
// It must be called on the builder returned by NewBuilder, not on a
// child opened via Open.
func (b *Builder) Finalize() (*Graph, error) {
	if b.parent != nil {
		return nil, fmt.Errorf("hag: Finalize called on a non-root builder scoped to %q", b.node.Name)
	}
	if _, err := b.Seal(); err != nil {
		return nil, err
	}

	byIndex := make(map[int]*Node, len(b.st.nodes))
	for _, n := range b.st.nodes {
		byIndex[n.Index] = n
	}
	edgesByPair := make(map[[2]int]*Edge, len(b.st.edges))
	for i := range b.st.edges {
		e := &b.st.edges[i]
		edgesByPair[[2]int{e.Src, e.Dst}] = e
	}

	return &Graph{
		root:        b.node,
		byName:      b.st.nodes,
		byIndex:     byIndex,
		edgesByPair: edgesByPair,
	}, nil
}
