package pass

import (
	"sort"

	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// SurfaceAllocator returns the id for the n-th extracted surface of a
// parent. It must return the same id for the same arguments so repeated
// compiles of an unchanged patch keep their ids.
type SurfaceAllocator func(parent mir.SurfaceID, n int) mir.SurfaceID

type extractSet struct {
	nodes   map[int]bool
	sources map[int]bool
	seen    map[int]bool
	merged  int
}

type socketRef struct {
	node, socket int
}

// GroupExtracted moves every subgraph fed by an extractor into a new
// surface run once per voice by an extract group node. The new surfaces
// are returned; s is modified in place.
//
// A set starts at each group written by an extractor socket. Nodes reading
// a group of the set through a plain socket are claimed, and the groups
// they write join the set. Sets that meet are merged.
func GroupExtracted(s *mir.Surface, alloc SurfaceAllocator, sm *SourceMap) []*mir.Surface {
	readers := make([][]socketRef, len(s.Groups))
	users := make([][]socketRef, len(s.Groups))
	var seeds []int
	seeded := make(map[int]bool)
	for ni, n := range s.Nodes {
		for si, sock := range n.Sockets {
			ref := socketRef{ni, si}
			users[sock.GroupID] = append(users[sock.GroupID], ref)
			if sock.ValueRead {
				readers[sock.GroupID] = append(readers[sock.GroupID], ref)
			}
			if sock.IsExtractor && sock.ValueWritten && !seeded[sock.GroupID] {
				seeded[sock.GroupID] = true
				seeds = append(seeds, sock.GroupID)
			}
		}
	}
	sort.Ints(seeds)

	owner := make([]int, len(s.Nodes))
	for i := range owner {
		owner[i] = -1
	}
	var sets []*extractSet
	find := func(i int) int {
		for sets[i].merged >= 0 {
			i = sets[i].merged
		}
		return i
	}

	for _, seed := range seeds {
		cur := len(sets)
		set := &extractSet{
			nodes:   make(map[int]bool),
			sources: map[int]bool{seed: true},
			seen:    map[int]bool{seed: true},
			merged:  -1,
		}
		sets = append(sets, set)

		queue := []int{seed}
		for len(queue) > 0 {
			g := queue[0]
			queue = queue[1:]

			for _, r := range readers[g] {
				n := s.Nodes[r.node]
				if n.Sockets[r.socket].IsExtractor || n.Data.Kind == mir.NodeExtractGroup {
					continue
				}

				if owner[r.node] < 0 {
					owner[r.node] = cur
					set.nodes[r.node] = true
					for _, sock := range n.Sockets {
						if sock.ValueWritten && !sock.IsExtractor && !set.seen[sock.GroupID] {
							set.seen[sock.GroupID] = true
							queue = append(queue, sock.GroupID)
						}
					}
					continue
				}

				other := find(owner[r.node])
				if other == cur {
					continue
				}
				o := sets[other]
				for ni := range o.nodes {
					set.nodes[ni] = true
					owner[ni] = cur
				}
				for og := range o.sources {
					set.sources[og] = true
				}
				for og := range o.seen {
					set.seen[og] = true
				}
				o.nodes, o.merged = nil, cur
			}
		}
	}

	var live []*extractSet
	for _, set := range sets {
		if set.merged < 0 && len(set.nodes) > 0 {
			live = append(live, set)
		}
	}
	sort.Slice(live, func(i, j int) bool { return minKey(live[i].nodes) < minKey(live[j].nodes) })

	if len(live) == 0 {
		return nil
	}

	var children []*mir.Surface
	var extractNodes, mixNodes []mir.Node
	moved := make(map[int]NodeRef)
	for ordinal, set := range live {
		child, node, mix, claimed := buildExtracted(s, set, users, alloc(s.ID, ordinal))
		for j, ni := range claimed {
			moved[ni] = NodeRef{Surface: child.ID, Node: j}
		}
		children = append(children, child)
		extractNodes = append(extractNodes, node)
		mixNodes = append(mixNodes, mix...)
	}

	kept := make(map[int]int)
	var nodes []mir.Node
	for ni, n := range s.Nodes {
		if _, ok := moved[ni]; ok {
			continue
		}
		kept[ni] = len(nodes)
		nodes = append(nodes, n)
	}
	first := len(nodes)
	s.Nodes = append(append(nodes, extractNodes...), mixNodes...)

	if sm != nil {
		parent := s.ID
		sm.remap(func(r NodeRef) NodeRef {
			if sm.Canonical(r.Surface) != parent || r.Node < 0 {
				return r
			}
			if to, ok := moved[r.Node]; ok {
				return to
			}
			if k, ok := kept[r.Node]; ok {
				r.Node = k
			}
			return r
		})
		for k, child := range children {
			sm.setParent(child.ID, NodeRef{Surface: parent, Node: first + k})
		}
	}

	return children
}

func minKey(m map[int]bool) int {
	min := -1
	for k := range m {
		if min < 0 || k < min {
			min = k
		}
	}
	return min
}

// buildExtracted copies the set's nodes into a new surface and returns it
// together with the extract group node that replaces them.
//
// A number group the voices write but do not read, and that no extractor
// outside the set collects, is given a new array group in s as the voices'
// destination. The returned mixdown nodes sum that array back into the
// original group.
func buildExtracted(s *mir.Surface, set *extractSet, users [][]socketRef, id mir.SurfaceID) (*mir.Surface, mir.Node, []mir.Node, []int) {
	claimed := make([]int, 0, len(set.nodes))
	for ni := range set.nodes {
		claimed = append(claimed, ni)
	}
	sort.Ints(claimed)

	child := &mir.Surface{ID: id, Name: s.Name + ".voice"}
	node := mir.Node{Data: mir.ExtractGroupData(id, nil, nil)}
	var mixdowns []mir.Node
	childGroup := make(map[int]int)

	internal := func(g int) bool {
		if s.Groups[g].Source.Kind == mir.SourceSocket || set.sources[g] {
			return false
		}
		for _, u := range users[g] {
			if !set.nodes[u.node] {
				return false
			}
		}
		return true
	}

	for _, ni := range claimed {
		for _, sock := range s.Nodes[ni].Sockets {
			g := sock.GroupID
			if _, ok := childGroup[g]; ok {
				continue
			}
			childGroup[g] = len(child.Groups)
			if internal(g) {
				child.Groups = append(child.Groups, s.Groups[g])
				continue
			}

			source, dest := set.sources[g], false
			if !source {
				for _, u := range users[g] {
					us := s.Nodes[u.node].Sockets[u.socket]
					if !set.nodes[u.node] && us.IsExtractor && us.ValueRead {
						dest = true
					}
				}
			}

			ext := mir.ValueSocket{GroupID: g}
			for _, u := range users[g] {
				if set.nodes[u.node] {
					us := s.Nodes[u.node].Sockets[u.socket]
					ext.ValueRead = ext.ValueRead || us.ValueRead
					ext.ValueWritten = ext.ValueWritten || us.ValueWritten
				}
			}

			valueType := s.Groups[g].ValueType
			mix := !source && !dest && ext.ValueWritten && !ext.ValueRead && valueType.Equal(mir.Num())
			if mix {
				ext.GroupID = len(s.Groups)
				s.Groups = append(s.Groups, mir.ValueGroup{ValueType: mir.ArrayOf(mir.Num())})
				mixdowns = append(mixdowns, mir.Node{
					Sockets: []mir.ValueSocket{
						{GroupID: ext.GroupID, ValueRead: true, IsExtractor: true},
						{GroupID: g, ValueWritten: true},
					},
					Data: mir.CustomData(mir.MixdownBlockID),
				})
			}
			ext.IsExtractor = source || dest || mix

			sockIdx := len(node.Sockets)
			node.Sockets = append(node.Sockets, ext)
			if source || dest {
				valueType = valueType.Base()
			}
			if source {
				node.Data.SourceSockets = append(node.Data.SourceSockets, sockIdx)
			}
			if dest || mix {
				node.Data.DestSockets = append(node.Data.DestSockets, sockIdx)
			}
			child.Groups = append(child.Groups, mir.ValueGroup{ValueType: valueType, Source: mir.SocketSource(sockIdx)})
		}
	}

	for _, ni := range claimed {
		n := s.Nodes[ni].Clone()
		for si := range n.Sockets {
			n.Sockets[si].GroupID = childGroup[n.Sockets[si].GroupID]
		}
		child.Nodes = append(child.Nodes, n)
	}

	return child, node, mixdowns, claimed
}
