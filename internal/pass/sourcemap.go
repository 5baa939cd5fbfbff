package pass

import "github.com/monadgroup/axiom-sub000/internal/mir"

// NodeRef names a node inside a surface. A negative Node stands for the
// surface itself: the group node was flattened away and its surface now
// shares its parent's storage.
type NodeRef struct {
	Surface mir.SurfaceID
	Node    int
}

// SourceMap follows nodes through the passes so host-side indices, which
// refer to the surfaces the host built, can be resolved to the optimized
// project.
type SourceMap struct {
	nodes   map[NodeRef]NodeRef
	parents map[mir.SurfaceID]NodeRef
	aliases map[mir.SurfaceID]mir.SurfaceID
}

// NewSourceMap maps every node of p to itself.
func NewSourceMap(p *mir.Project) *SourceMap {
	sm := &SourceMap{
		nodes:   make(map[NodeRef]NodeRef),
		parents: make(map[mir.SurfaceID]NodeRef),
		aliases: make(map[mir.SurfaceID]mir.SurfaceID),
	}
	for id, s := range p.Surfaces {
		for i := range s.Nodes {
			ref := NodeRef{Surface: id, Node: i}
			sm.nodes[ref] = ref
		}
	}
	return sm
}

// Canonical follows dedup and flatten aliases to the surface that holds
// id's storage in the optimized project.
func (sm *SourceMap) Canonical(id mir.SurfaceID) mir.SurfaceID {
	for {
		next, ok := sm.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
}

// Resolve returns where a host node ended up.
func (sm *SourceMap) Resolve(surface mir.SurfaceID, node int) (NodeRef, bool) {
	ref, ok := sm.nodes[NodeRef{Surface: surface, Node: node}]
	return ref, ok
}

// Parent returns the extract group node that runs an extracted surface.
func (sm *SourceMap) Parent(surface mir.SurfaceID) (NodeRef, bool) {
	ref, ok := sm.parents[surface]
	return ref, ok
}

// Path returns the chain of nodes from the surface the host pointer refers
// to down to the node. Every step but the last is an extract group node.
func (sm *SourceMap) Path(surface mir.SurfaceID, node int) ([]NodeRef, bool) {
	ref, ok := sm.Resolve(surface, node)
	if !ok {
		return nil, false
	}
	path := []NodeRef{ref}
	for {
		parent, ok := sm.parents[ref.Surface]
		if !ok {
			return path, true
		}
		path = append([]NodeRef{parent}, path...)
		ref = parent
	}
}

// IsExtracted reports whether the node was moved into an extracted
// surface.
func (sm *SourceMap) IsExtracted(surface mir.SurfaceID, node int) bool {
	path, ok := sm.Path(surface, node)
	return ok && len(path) > 1
}

// remap passes every tracked location through f.
func (sm *SourceMap) remap(f func(NodeRef) NodeRef) {
	for k, v := range sm.nodes {
		sm.nodes[k] = f(v)
	}
	for k, v := range sm.parents {
		sm.parents[k] = f(v)
	}
}

// permute applies perm[old] = new to the nodes of one surface.
func (sm *SourceMap) permute(surface mir.SurfaceID, perm []int) {
	sm.remap(func(r NodeRef) NodeRef {
		if sm.Canonical(r.Surface) == surface && r.Node >= 0 && r.Node < len(perm) {
			r.Node = perm[r.Node]
		}
		return r
	})
}

func (sm *SourceMap) alias(from, to mir.SurfaceID) {
	if from != to {
		sm.aliases[from] = to
	}
}

func (sm *SourceMap) setParent(child mir.SurfaceID, parent NodeRef) {
	sm.parents[child] = parent
}
