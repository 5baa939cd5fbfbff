package mir

import (
	"fmt"
	"strings"

	"github.com/nikandfor/errors"
)

type SurfaceID uint64

// RootSurfaceID is the id of the project's root surface.
const RootSurfaceID SurfaceID = 0

type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceSocket
	SourceDefault
)

// ValueGroupSource says where a value group's storage comes from.
type ValueGroupSource struct {
	Kind    SourceKind
	Socket  int
	Default ConstantValue
}

func NoneSource() ValueGroupSource { return ValueGroupSource{} }

func SocketSource(i int) ValueGroupSource {
	return ValueGroupSource{Kind: SourceSocket, Socket: i}
}

func DefaultSource(c ConstantValue) ValueGroupSource {
	return ValueGroupSource{Kind: SourceDefault, Default: c}
}

func (s ValueGroupSource) String() string {
	switch s.Kind {
	case SourceSocket:
		return fmt.Sprintf("socket(%d)", s.Socket)
	case SourceDefault:
		return "default(" + exactConst(s.Default) + ")"
	}
	return "none"
}

type ValueGroup struct {
	ValueType VarType
	Source    ValueGroupSource
}

type ValueSocket struct {
	GroupID      int
	ValueWritten bool
	ValueRead    bool
	IsExtractor  bool
}

type NodeKind int

const (
	NodeDummy NodeKind = iota
	NodeCustom
	NodeGroup
	NodeExtractGroup
)

var nodeKindNames = [...]string{"dummy", "custom", "group", "extract"}

func (k NodeKind) String() string { return nodeKindNames[k] }

// NodeData is the payload of a node. Block is set for custom nodes, Surface
// for group and extract group nodes.
type NodeData struct {
	Kind          NodeKind
	Block         BlockID
	Surface       SurfaceID
	SourceSockets []int
	DestSockets   []int
}

func DummyData() NodeData { return NodeData{} }

func CustomData(b BlockID) NodeData { return NodeData{Kind: NodeCustom, Block: b} }

func GroupData(s SurfaceID) NodeData { return NodeData{Kind: NodeGroup, Surface: s} }

func ExtractGroupData(s SurfaceID, sources, dests []int) NodeData {
	return NodeData{Kind: NodeExtractGroup, Surface: s, SourceSockets: sources, DestSockets: dests}
}

// References reports whether the node runs a subsurface.
func (d NodeData) References() (SurfaceID, bool) {
	if d.Kind == NodeGroup || d.Kind == NodeExtractGroup {
		return d.Surface, true
	}
	return 0, false
}

type Node struct {
	Sockets []ValueSocket
	Data    NodeData
}

func (n Node) Clone() Node {
	n.Sockets = append([]ValueSocket(nil), n.Sockets...)
	n.Data.SourceSockets = append([]int(nil), n.Data.SourceSockets...)
	n.Data.DestSockets = append([]int(nil), n.Data.DestSockets...)
	return n
}

type Surface struct {
	ID     SurfaceID
	Name   string
	Groups []ValueGroup
	Nodes  []Node
}

func (s *Surface) Clone() *Surface {
	c := *s
	c.Groups = append([]ValueGroup(nil), s.Groups...)
	c.Nodes = make([]Node, len(s.Nodes))
	for i, n := range s.Nodes {
		c.Nodes[i] = n.Clone()
	}
	return &c
}

// Validate checks the structural invariants a surface must hold before it
// is accepted. blocks and surfaces resolve what nodes reference; unknown
// ids are reported.
func (s *Surface) Validate(blocks func(BlockID) (*Block, bool), surfaces func(SurfaceID) (*Surface, bool)) error {
	for ni, n := range s.Nodes {
		for si, sock := range n.Sockets {
			if sock.GroupID < 0 || sock.GroupID >= len(s.Groups) {
				return errors.New("surface %d node %d socket %d: group %d out of range", s.ID, ni, si, sock.GroupID)
			}
		}

		switch n.Data.Kind {
		case NodeCustom:
			b, ok := blocks(n.Data.Block)
			if !ok {
				return errors.New("surface %d node %d: unknown block %d", s.ID, ni, n.Data.Block)
			}
			if len(b.Controls) != len(n.Sockets) {
				return errors.New("surface %d node %d: %d sockets for %d controls of block %d", s.ID, ni, len(n.Sockets), len(b.Controls), b.ID)
			}
		case NodeGroup, NodeExtractGroup:
			for _, list := range [][]int{n.Data.SourceSockets, n.Data.DestSockets} {
				for _, i := range list {
					if i < 0 || i >= len(n.Sockets) {
						return errors.New("surface %d node %d: extract socket %d out of range", s.ID, ni, i)
					}
				}
			}

			sub, ok := surfaces(n.Data.Surface)
			if !ok {
				return errors.New("surface %d node %d: unknown surface %d", s.ID, ni, n.Data.Surface)
			}
			for gi, g := range sub.Groups {
				if g.Source.Kind != SourceSocket {
					continue
				}
				if i := g.Source.Socket; i < 0 || i >= len(n.Sockets) {
					return errors.New("surface %d node %d: group %d of surface %d reads socket %d of %d", s.ID, ni, gi, sub.ID, i, len(n.Sockets))
				}
			}
		}
	}

	return nil
}

// Key identifies a surface up to equivalence: groups and nodes compared
// deeply. The id and name are ignored.
func (s *Surface) Key() string {
	var sb strings.Builder
	for _, g := range s.Groups {
		fmt.Fprintf(&sb, "%v=%v;", g.ValueType, g.Source)
	}
	sb.WriteByte('|')
	for _, n := range s.Nodes {
		writeNodeKey(&sb, n)
		sb.WriteByte(';')
	}
	return sb.String()
}

func writeNodeKey(sb *strings.Builder, n Node) {
	switch n.Data.Kind {
	case NodeCustom:
		fmt.Fprintf(sb, "custom %d", n.Data.Block)
	case NodeGroup:
		fmt.Fprintf(sb, "group %d", n.Data.Surface)
	case NodeExtractGroup:
		fmt.Fprintf(sb, "extract %d %v %v", n.Data.Surface, n.Data.SourceSockets, n.Data.DestSockets)
	default:
		sb.WriteString("dummy")
	}
	for _, sock := range n.Sockets {
		fmt.Fprintf(sb, " %d", sock.GroupID)
		for _, f := range []bool{sock.ValueWritten, sock.ValueRead, sock.IsExtractor} {
			if f {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
}

func (s *Surface) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "surface %d %q\n", s.ID, s.Name)
	for i, g := range s.Groups {
		fmt.Fprintf(&sb, "  group %d: %v %v\n", i, g.ValueType, g.Source)
	}
	for i, n := range s.Nodes {
		fmt.Fprintf(&sb, "  node %d: ", i)
		writeNodeKey(&sb, n)
		sb.WriteByte('\n')
	}
	return sb.String()
}
