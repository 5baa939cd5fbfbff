package pass

import "github.com/monadgroup/axiom-sub000/internal/mir"

// remapGroups rewrites the surface's groups so that group old ends up at
// index remap[old]. Groups mapped to -1 are dropped.
func remapGroups(s *mir.Surface, remap []int, count int) {
	groups := make([]mir.ValueGroup, count)
	for old, g := range s.Groups {
		if remap[old] >= 0 {
			groups[remap[old]] = g
		}
	}
	s.Groups = groups
	for ni := range s.Nodes {
		for si := range s.Nodes[ni].Sockets {
			sock := &s.Nodes[ni].Sockets[si]
			sock.GroupID = remap[sock.GroupID]
		}
	}
}

// RemoveDeadGroups drops value groups no socket refers to. It reports
// whether anything was removed.
func RemoveDeadGroups(s *mir.Surface) bool {
	refs := make([]int, len(s.Groups))
	for _, n := range s.Nodes {
		for _, sock := range n.Sockets {
			refs[sock.GroupID]++
		}
	}

	remap := make([]int, len(s.Groups))
	count := 0
	for i, r := range refs {
		if r == 0 {
			remap[i] = -1
			continue
		}
		remap[i] = count
		count++
	}
	if count == len(s.Groups) {
		return false
	}
	remapGroups(s, remap, count)
	return true
}

// SortValueGroups renumbers groups in the order the node socket lists
// first mention them. Unreferenced groups keep their relative order at the
// end.
func SortValueGroups(s *mir.Surface) {
	remap := make([]int, len(s.Groups))
	for i := range remap {
		remap[i] = -1
	}
	next := 0
	for _, n := range s.Nodes {
		for _, sock := range n.Sockets {
			if remap[sock.GroupID] < 0 {
				remap[sock.GroupID] = next
				next++
			}
		}
	}
	for i := range remap {
		if remap[i] < 0 {
			remap[i] = next
			next++
		}
	}
	remapGroups(s, remap, len(s.Groups))
}

// SortGroupSockets renumbers the sockets of every group and extract group
// node so that a subsurface's socket-sourced groups refer to sockets 0, 1,
// 2, ... in group order. Surfaces are visited children first, and each
// surface's value groups are sorted before its socket order is fixed.
func SortGroupSockets(p *mir.Project) {
	refs := referencingNodes(p)

	for _, id := range postOrder(p) {
		s := p.Surfaces[id]
		SortValueGroups(s)
		if id == mir.RootSurfaceID || len(refs[id]) == 0 {
			continue
		}

		first := refs[id][0]
		count := len(p.Surfaces[first.Surface].Nodes[first.Node].Sockets)
		perm := make([]int, count)
		for i := range perm {
			perm[i] = -1
		}
		next := 0
		for _, g := range s.Groups {
			if g.Source.Kind == mir.SourceSocket && g.Source.Socket < count && perm[g.Source.Socket] < 0 {
				perm[g.Source.Socket] = next
				next++
			}
		}
		for i := range perm {
			if perm[i] < 0 {
				perm[i] = next
				next++
			}
		}

		for gi := range s.Groups {
			if src := &s.Groups[gi].Source; src.Kind == mir.SourceSocket && src.Socket < count {
				src.Socket = perm[src.Socket]
			}
		}
		for _, ref := range refs[id] {
			n := &p.Surfaces[ref.Surface].Nodes[ref.Node]
			if len(n.Sockets) != count {
				continue
			}
			sockets := make([]mir.ValueSocket, len(n.Sockets))
			for i, sock := range n.Sockets {
				sockets[perm[i]] = sock
			}
			n.Sockets = sockets
			for i, v := range n.Data.SourceSockets {
				n.Data.SourceSockets[i] = perm[v]
			}
			for i, v := range n.Data.DestSockets {
				n.Data.DestSockets[i] = perm[v]
			}
		}
	}
}

// referencingNodes lists, per surface, the group and extract group nodes
// that run it.
func referencingNodes(p *mir.Project) map[mir.SurfaceID][]NodeRef {
	refs := make(map[mir.SurfaceID][]NodeRef)
	for _, id := range p.SurfaceIDs() {
		for i, n := range p.Surfaces[id].Nodes {
			if sub, ok := n.Data.References(); ok {
				refs[sub] = append(refs[sub], NodeRef{Surface: id, Node: i})
			}
		}
	}
	return refs
}

// postOrder returns the surfaces reachable from the root, children before
// parents.
func postOrder(p *mir.Project) []mir.SurfaceID {
	var order []mir.SurfaceID
	seen := make(map[mir.SurfaceID]bool)

	var visit func(id mir.SurfaceID)
	visit = func(id mir.SurfaceID) {
		s, ok := p.Surfaces[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		for _, n := range s.Nodes {
			if sub, ok := n.Data.References(); ok {
				visit(sub)
			}
		}
		order = append(order, id)
	}
	visit(mir.RootSurfaceID)

	return order
}

// Prune removes surfaces and blocks that are not reachable from the root.
func Prune(p *mir.Project) {
	live := make(map[mir.SurfaceID]bool)
	blocks := make(map[mir.BlockID]bool)
	for _, id := range postOrder(p) {
		live[id] = true
		for _, n := range p.Surfaces[id].Nodes {
			if n.Data.Kind == mir.NodeCustom {
				blocks[n.Data.Block] = true
			}
		}
	}
	for id := range p.Surfaces {
		if !live[id] {
			delete(p.Surfaces, id)
		}
	}
	for id := range p.Blocks {
		if !blocks[id] {
			delete(p.Blocks, id)
		}
	}
}
