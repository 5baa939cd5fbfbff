package pass

import "github.com/monadgroup/axiom-sub000/internal/mir"

// DedupBlocks keeps the lowest-id block of every set of equivalent blocks
// and points custom nodes at it. It returns the number of blocks removed.
func DedupBlocks(p *mir.Project) int {
	canonical := make(map[string]mir.BlockID)
	replace := make(map[mir.BlockID]mir.BlockID)
	for _, id := range p.BlockIDs() {
		key := p.Blocks[id].Key()
		if first, ok := canonical[key]; ok {
			replace[id] = first
			continue
		}
		canonical[key] = id
	}
	if len(replace) == 0 {
		return 0
	}

	for _, s := range p.Surfaces {
		for ni := range s.Nodes {
			d := &s.Nodes[ni].Data
			if to, ok := replace[d.Block]; ok && d.Kind == mir.NodeCustom {
				d.Block = to
			}
		}
	}
	for id := range replace {
		delete(p.Blocks, id)
	}
	return len(replace)
}

// DedupSurfaces merges equivalent surfaces, children first so that equal
// subtrees collapse bottom-up. References in dependent surfaces are
// rewritten to the surviving surface. It returns the number of surfaces
// removed.
func DedupSurfaces(p *mir.Project, sm *SourceMap) int {
	canonical := make(map[string]mir.SurfaceID)
	replace := make(map[mir.SurfaceID]mir.SurfaceID)

	for _, id := range postOrder(p) {
		s := p.Surfaces[id]
		for ni := range s.Nodes {
			d := &s.Nodes[ni].Data
			if sub, ok := d.References(); ok {
				if to, ok := replace[sub]; ok {
					d.Surface = to
				}
			}
		}
		if id == mir.RootSurfaceID {
			continue
		}

		key := s.Key()
		if first, ok := canonical[key]; ok {
			replace[id] = first
			continue
		}
		canonical[key] = id
	}

	for from, to := range replace {
		delete(p.Surfaces, from)
		if sm != nil {
			sm.alias(from, to)
		}
	}
	return len(replace)
}
