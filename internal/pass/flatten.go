package pass

import "github.com/monadgroup/axiom-sub000/internal/mir"

// FlattenGroups splices every surface that is run by exactly one plain
// group node into its parent. Extract groups are never flattened since each
// voice needs its own copy. It returns the ids of the parents that changed.
func FlattenGroups(p *mir.Project, sm *SourceMap) []mir.SurfaceID {
	groupRefs := make(map[mir.SurfaceID]int)
	extractRefs := make(map[mir.SurfaceID]int)
	for _, s := range p.Surfaces {
		for _, n := range s.Nodes {
			switch n.Data.Kind {
			case mir.NodeGroup:
				groupRefs[n.Data.Surface]++
			case mir.NodeExtractGroup:
				extractRefs[n.Data.Surface]++
			}
		}
	}
	flattenable := func(id mir.SurfaceID) bool {
		return id != mir.RootSurfaceID && groupRefs[id] == 1 && extractRefs[id] == 0
	}

	var modified []mir.SurfaceID
	for _, id := range postOrder(p) {
		s := p.Surfaces[id]
		changed := false
		for i := 0; i < len(s.Nodes); i++ {
			n := s.Nodes[i]
			if n.Data.Kind != mir.NodeGroup || !flattenable(n.Data.Surface) {
				continue
			}
			child, ok := p.Surfaces[n.Data.Surface]
			if !ok {
				continue
			}
			flattenInto(s, i, n, child, sm)
			delete(p.Surfaces, child.ID)
			i += len(child.Nodes) - 1
			changed = true
		}
		if changed {
			modified = append(modified, id)
		}
	}
	return modified
}

func flattenInto(parent *mir.Surface, at int, placeholder mir.Node, child *mir.Surface, sm *SourceMap) {
	remap := make([]int, len(child.Groups))
	for gi, g := range child.Groups {
		if g.Source.Kind == mir.SourceSocket && g.Source.Socket < len(placeholder.Sockets) {
			remap[gi] = placeholder.Sockets[g.Source.Socket].GroupID
			continue
		}
		remap[gi] = len(parent.Groups)
		parent.Groups = append(parent.Groups, g)
	}

	spliced := make([]mir.Node, 0, len(parent.Nodes)-1+len(child.Nodes))
	spliced = append(spliced, parent.Nodes[:at]...)
	for _, n := range child.Nodes {
		n = n.Clone()
		for si := range n.Sockets {
			n.Sockets[si].GroupID = remap[n.Sockets[si].GroupID]
		}
		spliced = append(spliced, n)
	}
	spliced = append(spliced, parent.Nodes[at+1:]...)
	parent.Nodes = spliced

	if sm == nil {
		return
	}
	shift := len(child.Nodes) - 1
	sm.remap(func(r NodeRef) NodeRef {
		switch sm.Canonical(r.Surface) {
		case child.ID:
			if r.Node >= 0 {
				return NodeRef{Surface: parent.ID, Node: at + r.Node}
			}
			return NodeRef{Surface: parent.ID, Node: -1}
		case parent.ID:
			switch {
			case r.Node == at:
				r.Node = -1
			case r.Node > at:
				r.Node += shift
			}
		}
		return r
	})
	sm.alias(child.ID, parent.ID)
}
