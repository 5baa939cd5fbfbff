// Package pass runs the surface optimizer: extraction, ordering,
// deduplication and flattening of the MIR surface graph.
package pass

import (
	"context"

	"github.com/nikandfor/tlog"

	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// PrepareSurface runs the passes that only look at one surface: extracted
// subgraphs are split off into new surfaces, then nodes are ordered and
// value groups cleaned up in the surface and in every new child.
func PrepareSurface(s *mir.Surface, alloc SurfaceAllocator, sm *SourceMap) []*mir.Surface {
	children := GroupExtracted(s, alloc, sm)
	for _, x := range append([]*mir.Surface{s}, children...) {
		OrderNodes(x, sm)
		RemoveDeadGroups(x)
		SortValueGroups(x)
	}
	return children
}

// Optimize returns an optimized copy of src together with the map from
// src's node indices to the copy. src is not modified.
func Optimize(ctx context.Context, src *mir.Project, alloc SurfaceAllocator) (*mir.Project, *SourceMap) {
	tr := tlog.SpanFromContext(ctx)

	p := src.Clone()
	sm := NewSourceMap(p)

	for _, id := range src.SurfaceIDs() {
		for _, child := range PrepareSurface(p.Surfaces[id], alloc, sm) {
			p.Surfaces[child.ID] = child
		}
	}
	// Prune drops it again when no extraction needed a mixdown.
	p.Blocks[mir.MixdownBlockID] = mir.MixdownBlock()
	Prune(p)

	SortGroupSockets(p)
	blocks := DedupBlocks(p)
	surfaces := DedupSurfaces(p, sm)
	flattened := FlattenGroups(p, sm)
	for _, id := range flattened {
		s := p.Surfaces[id]
		RemoveDeadGroups(s)
		SortValueGroups(s)
	}
	Prune(p)

	tr.Printw("surface passes", "surfaces", len(p.Surfaces), "blocks", len(p.Blocks),
		"dedup_blocks", blocks, "dedup_surfaces", surfaces, "flattened_into", len(flattened))
	if tr.If("dump_passes") {
		for _, id := range p.SurfaceIDs() {
			tr.Printw("surface", "id", id, "surface", p.Surfaces[id].String())
		}
	}

	return p, sm
}
