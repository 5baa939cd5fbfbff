package runtime

import (
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// layouts caches the analyzed storage of every deployed block and surface.
type layouts struct {
	blocks   map[mir.BlockID]*analyze.BlockLayout
	surfaces map[mir.SurfaceID]*analyze.SurfaceLayout
}

func newLayouts() *layouts {
	return &layouts{
		blocks:   make(map[mir.BlockID]*analyze.BlockLayout),
		surfaces: make(map[mir.SurfaceID]*analyze.SurfaceLayout),
	}
}

func (l *layouts) BlockLayout(id mir.BlockID) (*analyze.BlockLayout, bool) {
	b, ok := l.blocks[id]
	return b, ok
}

func (l *layouts) SurfaceLayout(id mir.SurfaceID) (*analyze.SurfaceLayout, bool) {
	s, ok := l.surfaces[id]
	return s, ok
}

// clone copies the maps; layouts themselves are never modified.
func (l *layouts) clone() *layouts {
	c := newLayouts()
	for id, b := range l.blocks {
		c.blocks[id] = b
	}
	for id, s := range l.surfaces {
		c.surfaces[id] = s
	}
	return c
}
