package runtime

import (
	"github.com/monadgroup/axiom-sub000/internal/lower"
	"github.com/monadgroup/axiom-sub000/internal/mir"
	"github.com/monadgroup/axiom-sub000/internal/optimize"
	"github.com/monadgroup/axiom-sub000/internal/parser"
)

// CompileBlock parses, lowers and optimizes a block's source. Errors are
// *diag.Error values carrying the source range at fault.
func CompileBlock(id mir.BlockID, name, src string) (*mir.Block, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	b, err := lower.Lower(id, name, tree)
	if err != nil {
		return nil, err
	}
	return optimize.Block(b), nil
}
