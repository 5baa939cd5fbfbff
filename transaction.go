package axiom

import (
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Transaction collects replacement objects for one Commit. Objects built
// into a transaction replace any committed object with the same id.
type Transaction struct {
	tx mir.Transaction
}

// BuildRoot replaces the root's portal list. Call BuildRootSocket to
// add portals; their order is their portal id.
func (t *Transaction) BuildRoot() {
	t.tx.Root = &mir.Root{}
}

// BuildRootSocket appends a portal to the root and returns its id.
func (t *Transaction) BuildRootSocket(name string, kind PortalKind, typ VarType) int {
	if t.tx.Root == nil {
		t.BuildRoot()
	}
	t.tx.Root.Sockets = append(t.tx.Root.Sockets, RootSocket{Name: name, Kind: kind, Type: typ})
	return len(t.tx.Root.Sockets) - 1
}

// BuildSurface starts a surface. A surface with the same id already in
// the transaction is replaced.
func (t *Transaction) BuildSurface(id SurfaceID, name string) *SurfaceBuilder {
	s := &mir.Surface{ID: id, Name: name}
	for i, o := range t.tx.Surfaces {
		if o.ID == id {
			t.tx.Surfaces[i] = s
			return &SurfaceBuilder{s: s}
		}
	}
	t.tx.Surfaces = append(t.tx.Surfaces, s)
	return &SurfaceBuilder{s: s}
}

// BuildBlock adds a compiled block.
func (t *Transaction) BuildBlock(b *Block) {
	for i, o := range t.tx.Blocks {
		if o.ID == b.ID {
			t.tx.Blocks[i] = b.Clone()
			return
		}
	}
	t.tx.Blocks = append(t.tx.Blocks, b.Clone())
}

func (t *Transaction) IsEmpty() bool { return t.tx.IsEmpty() }

func (t *Transaction) Clone() *Transaction {
	return &Transaction{tx: *t.tx.Clone()}
}

// MIR returns a copy of the transaction's objects.
func (t *Transaction) MIR() *mir.Transaction { return t.tx.Clone() }

type SurfaceBuilder struct {
	s *mir.Surface
}

func (b *SurfaceBuilder) ID() SurfaceID { return b.s.ID }

// BuildValueGroup adds a value group fed by no portal and returns its
// index.
func (b *SurfaceBuilder) BuildValueGroup(typ VarType) int {
	return b.group(mir.ValueGroup{ValueType: typ, Source: mir.NoneSource()})
}

// BuildSocketValueGroup adds a value group bound to socket i of every
// node referencing the surface. On the root surface i is a portal id.
func (b *SurfaceBuilder) BuildSocketValueGroup(typ VarType, i int) int {
	return b.group(mir.ValueGroup{ValueType: typ, Source: mir.SocketSource(i)})
}

// BuildDefaultValueGroup adds a value group initialized to a constant
// number.
func (b *SurfaceBuilder) BuildDefaultValueGroup(typ VarType, v Num) int {
	return b.group(mir.ValueGroup{ValueType: typ, Source: mir.DefaultSource(v.Constant())})
}

func (b *SurfaceBuilder) group(g mir.ValueGroup) int {
	b.s.Groups = append(b.s.Groups, g)
	return len(b.s.Groups) - 1
}

// BuildCustomNode adds a node running block.
func (b *SurfaceBuilder) BuildCustomNode(block BlockID) *NodeBuilder {
	return b.node(mir.CustomData(block))
}

// BuildGroupNode adds a node containing surface.
func (b *SurfaceBuilder) BuildGroupNode(surface SurfaceID) *NodeBuilder {
	return b.node(mir.GroupData(surface))
}

func (b *SurfaceBuilder) node(d mir.NodeData) *NodeBuilder {
	b.s.Nodes = append(b.s.Nodes, mir.Node{Data: d})
	return &NodeBuilder{s: b.s, i: len(b.s.Nodes) - 1}
}

type NodeBuilder struct {
	s *mir.Surface
	i int
}

// Index is the node's position on its surface.
func (n *NodeBuilder) Index() int { return n.i }

// BuildValueSocket connects the node's next socket to value group group.
// Sockets are numbered in the order they are built.
func (n *NodeBuilder) BuildValueSocket(group int, written, read, extractor bool) *NodeBuilder {
	node := &n.s.Nodes[n.i]
	node.Sockets = append(node.Sockets, mir.ValueSocket{
		GroupID:      group,
		ValueWritten: written,
		ValueRead:    read,
		IsExtractor:  extractor,
	})
	return n
}

// BlockPatch returns a transaction deploying b alone on the root surface
// with control i bound to portal i. Controls the block only writes become
// output portals.
func BlockPatch(b *Block) *Transaction {
	tx := &Transaction{}
	tx.BuildRoot()
	tx.BuildBlock(b)
	s := tx.BuildSurface(RootSurfaceID, b.Name)
	n := s.BuildCustomNode(b.ID)
	for _, c := range b.Controls {
		kind := PortalInput
		if c.ValueWritten && !c.ValueRead {
			kind = PortalOutput
		}
		p := tx.BuildRootSocket(c.Name, kind, c.Type.ValueType())
		g := s.BuildSocketValueGroup(c.Type.ValueType(), p)
		n.BuildValueSocket(g, c.ValueWritten, c.ValueRead, false)
	}
	return tx
}
