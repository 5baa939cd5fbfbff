package pass

import "github.com/monadgroup/axiom-sub000/internal/mir"

// OrderNodes sorts nodes so that every node runs after the nodes writing
// the groups it reads. Nodes that feed an output of the surface are
// visited first, depth first along reading connections; nodes that feed
// nothing follow in their original order. Feedback loops are broken at the
// first revisit.
func OrderNodes(s *mir.Surface, sm *SourceMap) {
	writers := make([][]int, len(s.Groups))
	for ni, n := range s.Nodes {
		for _, sock := range n.Sockets {
			if sock.ValueWritten {
				writers[sock.GroupID] = append(writers[sock.GroupID], ni)
			}
		}
	}

	order := make([]int, 0, len(s.Nodes))
	visited := make([]bool, len(s.Nodes))

	var visit func(ni int)
	visit = func(ni int) {
		if visited[ni] {
			return
		}
		visited[ni] = true
		for _, sock := range s.Nodes[ni].Sockets {
			if !sock.ValueRead {
				continue
			}
			for _, w := range writers[sock.GroupID] {
				visit(w)
			}
		}
		order = append(order, ni)
	}

	for ni, n := range s.Nodes {
		if isOutputNode(s, n) {
			visit(ni)
		}
	}
	for ni := range s.Nodes {
		visit(ni)
	}

	perm := make([]int, len(s.Nodes))
	nodes := make([]mir.Node, len(s.Nodes))
	changed := false
	for newIdx, oldIdx := range order {
		perm[oldIdx] = newIdx
		nodes[newIdx] = s.Nodes[oldIdx]
		changed = changed || newIdx != oldIdx
	}
	if !changed {
		return
	}
	s.Nodes = nodes
	if sm != nil {
		sm.permute(s.ID, perm)
	}
}

func isOutputNode(s *mir.Surface, n mir.Node) bool {
	for _, sock := range n.Sockets {
		if sock.ValueWritten && s.Groups[sock.GroupID].Source.Kind == mir.SourceSocket {
			return true
		}
	}
	return false
}
