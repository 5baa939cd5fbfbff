// Package depgraph tracks which surfaces use which surfaces and blocks, and
// finds objects nothing uses any more.
package depgraph

import (
	"sort"

	"github.com/monadgroup/axiom-sub000/internal/mir"
)

type surfaceDeps struct {
	dependedBy map[mir.SurfaceID]bool
	surfaces   map[mir.SurfaceID]bool
	blocks     map[mir.BlockID]bool
}

type Graph struct {
	surfaces map[mir.SurfaceID]*surfaceDeps
	blocks   map[mir.BlockID]map[mir.SurfaceID]bool

	surfaceCandidates map[mir.SurfaceID]bool
	blockCandidates   map[mir.BlockID]bool
}

func New() *Graph {
	return &Graph{
		surfaces:          make(map[mir.SurfaceID]*surfaceDeps),
		blocks:            make(map[mir.BlockID]map[mir.SurfaceID]bool),
		surfaceCandidates: make(map[mir.SurfaceID]bool),
		blockCandidates:   make(map[mir.BlockID]bool),
	}
}

func (g *Graph) surface(id mir.SurfaceID) *surfaceDeps {
	d, ok := g.surfaces[id]
	if !ok {
		d = &surfaceDeps{
			dependedBy: make(map[mir.SurfaceID]bool),
			surfaces:   make(map[mir.SurfaceID]bool),
			blocks:     make(map[mir.BlockID]bool),
		}
		g.surfaces[id] = d
	}
	return d
}

func (g *Graph) block(id mir.BlockID) map[mir.SurfaceID]bool {
	d, ok := g.blocks[id]
	if !ok {
		d = make(map[mir.SurfaceID]bool)
		g.blocks[id] = d
	}
	return d
}

// GenerateSurface recomputes s's outgoing edges. Objects that lose their
// last user become garbage collection candidates.
func (g *Graph) GenerateSurface(s *mir.Surface) {
	d := g.surface(s.ID)
	for sub := range d.surfaces {
		delete(g.surface(sub).dependedBy, s.ID)
		if len(g.surfaces[sub].dependedBy) == 0 {
			g.surfaceCandidates[sub] = true
		}
	}
	for b := range d.blocks {
		delete(g.block(b), s.ID)
		if len(g.blocks[b]) == 0 {
			g.blockCandidates[b] = true
		}
	}

	d.surfaces = make(map[mir.SurfaceID]bool)
	d.blocks = make(map[mir.BlockID]bool)
	for _, n := range s.Nodes {
		switch n.Data.Kind {
		case mir.NodeCustom:
			d.blocks[n.Data.Block] = true
			g.block(n.Data.Block)[s.ID] = true
		case mir.NodeGroup, mir.NodeExtractGroup:
			d.surfaces[n.Data.Surface] = true
			g.surface(n.Data.Surface).dependedBy[s.ID] = true
		}
	}
}

// AddBlock records a block nobody uses yet, so it is collected unless a
// surface picks it up.
func (g *Graph) AddBlock(id mir.BlockID) {
	if len(g.block(id)) == 0 {
		g.blockCandidates[id] = true
	}
}

// AddSurface records a surface nobody uses yet.
func (g *Graph) AddSurface(id mir.SurfaceID) {
	if len(g.surface(id).dependedBy) == 0 {
		g.surfaceCandidates[id] = true
	}
}

func (g *Graph) DependsOnSurfaces(id mir.SurfaceID) []mir.SurfaceID {
	d, ok := g.surfaces[id]
	if !ok {
		return nil
	}
	return sortedSurfaces(d.surfaces)
}

func (g *Graph) DependsOnBlocks(id mir.SurfaceID) []mir.BlockID {
	d, ok := g.surfaces[id]
	if !ok {
		return nil
	}
	ids := make([]mir.BlockID, 0, len(d.blocks))
	for b := range d.blocks {
		ids = append(ids, b)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Graph) SurfaceDependedBy(id mir.SurfaceID) []mir.SurfaceID {
	d, ok := g.surfaces[id]
	if !ok {
		return nil
	}
	return sortedSurfaces(d.dependedBy)
}

func (g *Graph) BlockDependedBy(id mir.BlockID) []mir.SurfaceID {
	return sortedSurfaces(g.blocks[id])
}

func (g *Graph) HasSurface(id mir.SurfaceID) bool {
	_, ok := g.surfaces[id]
	return ok
}

func (g *Graph) HasBlock(id mir.BlockID) bool {
	_, ok := g.blocks[id]
	return ok
}

// GarbageCollect erases every candidate nothing depends on, following the
// edges of erased surfaces. The root surface is always kept.
func (g *Graph) GarbageCollect() (surfaces []mir.SurfaceID, blocks []mir.BlockID) {
	for len(g.surfaceCandidates) > 0 || len(g.blockCandidates) > 0 {
		for id := range g.surfaceCandidates {
			delete(g.surfaceCandidates, id)
			d, ok := g.surfaces[id]
			if !ok || id == mir.RootSurfaceID || len(d.dependedBy) > 0 {
				continue
			}
			for sub := range d.surfaces {
				delete(g.surface(sub).dependedBy, id)
				if len(g.surfaces[sub].dependedBy) == 0 {
					g.surfaceCandidates[sub] = true
				}
			}
			for b := range d.blocks {
				delete(g.block(b), id)
				if len(g.blocks[b]) == 0 {
					g.blockCandidates[b] = true
				}
			}
			delete(g.surfaces, id)
			surfaces = append(surfaces, id)
		}
		for id := range g.blockCandidates {
			delete(g.blockCandidates, id)
			if users, ok := g.blocks[id]; ok && len(users) == 0 {
				delete(g.blocks, id)
				blocks = append(blocks, id)
			}
		}
	}

	sort.Slice(surfaces, func(i, j int) bool { return surfaces[i] < surfaces[j] })
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	return surfaces, blocks
}

// DepsFirst orders ids so that every surface comes after the surfaces it
// depends on. Only ids in the input are returned.
func (g *Graph) DepsFirst(ids []mir.SurfaceID) []mir.SurfaceID {
	want := make(map[mir.SurfaceID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	seen := make(map[mir.SurfaceID]bool)
	var order []mir.SurfaceID

	var visit func(id mir.SurfaceID)
	visit = func(id mir.SurfaceID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, sub := range g.DependsOnSurfaces(id) {
			visit(sub)
		}
		if want[id] {
			order = append(order, id)
		}
	}
	for _, id := range sortedSurfaces(want) {
		visit(id)
	}
	return order
}

// Ancestors returns every surface that depends on id, directly or not.
func (g *Graph) Ancestors(id mir.SurfaceID) []mir.SurfaceID {
	seen := make(map[mir.SurfaceID]bool)
	queue := []mir.SurfaceID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.SurfaceDependedBy(cur) {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return sortedSurfaces(seen)
}

func sortedSurfaces(m map[mir.SurfaceID]bool) []mir.SurfaceID {
	ids := make([]mir.SurfaceID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone copies the graph, pending candidates included.
func (g *Graph) Clone() *Graph {
	c := New()
	for id, d := range g.surfaces {
		cd := c.surface(id)
		for k := range d.dependedBy {
			cd.dependedBy[k] = true
		}
		for k := range d.surfaces {
			cd.surfaces[k] = true
		}
		for k := range d.blocks {
			cd.blocks[k] = true
		}
	}
	for id, users := range g.blocks {
		cu := c.block(id)
		for k := range users {
			cu[k] = true
		}
	}
	for k := range g.surfaceCandidates {
		c.surfaceCandidates[k] = true
	}
	for k := range g.blockCandidates {
		c.blockCandidates[k] = true
	}
	return c
}
