package mir

import "sort"

// Context allocates the ids shared by blocks and surfaces.
type Context struct {
	nextID uint64
}

// NewContext returns a context whose first allocated id is 1. Id 0 is
// reserved for the root surface.
func NewContext() *Context {
	return &Context{nextID: 1}
}

func (c *Context) AllocID() uint64 {
	id := c.nextID
	c.nextID++
	return id
}

// Reserve makes sure id is never handed out by AllocID.
func (c *Context) Reserve(id uint64) {
	if id >= c.nextID {
		c.nextID = id + 1
	}
}

type PortalKind int

const (
	PortalInput PortalKind = iota
	PortalOutput
	PortalAutomation
)

var portalKindNames = [...]string{"input", "output", "automation"}

func (k PortalKind) String() string { return portalKindNames[k] }

// RootSocket is a portal: a root-level socket owned by the host.
type RootSocket struct {
	Name string
	Kind PortalKind
	Type VarType
}

type Root struct {
	Sockets []RootSocket
}

func (r *Root) Clone() *Root {
	return &Root{Sockets: append([]RootSocket(nil), r.Sockets...)}
}

// Transaction is a batch of replacements applied atomically by a commit.
type Transaction struct {
	Root     *Root
	Surfaces []*Surface
	Blocks   []*Block
}

func (t *Transaction) IsEmpty() bool {
	return t == nil || (t.Root == nil && len(t.Surfaces) == 0 && len(t.Blocks) == 0)
}

func (t *Transaction) Clone() *Transaction {
	c := &Transaction{}
	if t.Root != nil {
		c.Root = t.Root.Clone()
	}
	for _, s := range t.Surfaces {
		c.Surfaces = append(c.Surfaces, s.Clone())
	}
	for _, b := range t.Blocks {
		c.Blocks = append(c.Blocks, b.Clone())
	}
	return c
}

// Project is a complete set of MIR objects reachable from the root.
type Project struct {
	Root     *Root
	Surfaces map[SurfaceID]*Surface
	Blocks   map[BlockID]*Block
}

func NewProject() *Project {
	return &Project{
		Root:     &Root{},
		Surfaces: make(map[SurfaceID]*Surface),
		Blocks:   make(map[BlockID]*Block),
	}
}

// Clone copies the project deeply enough that passes may mutate the copy.
// Blocks are shared: passes never modify a block in place.
func (p *Project) Clone() *Project {
	c := &Project{
		Root:     p.Root.Clone(),
		Surfaces: make(map[SurfaceID]*Surface, len(p.Surfaces)),
		Blocks:   make(map[BlockID]*Block, len(p.Blocks)),
	}
	for id, s := range p.Surfaces {
		c.Surfaces[id] = s.Clone()
	}
	for id, b := range p.Blocks {
		c.Blocks[id] = b
	}
	return c
}

// Apply replaces the objects named by the transaction.
func (p *Project) Apply(t *Transaction) {
	if t.Root != nil {
		p.Root = t.Root.Clone()
	}
	for _, s := range t.Surfaces {
		p.Surfaces[s.ID] = s.Clone()
	}
	for _, b := range t.Blocks {
		p.Blocks[b.ID] = b.Clone()
	}
}

func (p *Project) Block(id BlockID) (*Block, bool) {
	b, ok := p.Blocks[id]
	return b, ok
}

func (p *Project) Surface(id SurfaceID) (*Surface, bool) {
	s, ok := p.Surfaces[id]
	return s, ok
}

// SurfaceIDs returns all surface ids in ascending order.
func (p *Project) SurfaceIDs() []SurfaceID {
	ids := make([]SurfaceID, 0, len(p.Surfaces))
	for id := range p.Surfaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BlockIDs returns all block ids in ascending order.
func (p *Project) BlockIDs() []BlockID {
	ids := make([]BlockID, 0, len(p.Blocks))
	for id := range p.Blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
