package jit

import (
	"encoding/gob"
	"io"
	"sort"

	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/ir"
)

// Header describes the target an object was produced for.
type Header struct {
	Target         string
	InstructionSet string
	OptLevel       int
	Prefix         string
}

// Object is a serialized image: every linked module plus the names of the
// natives it expects the host to provide.
type Object struct {
	Header  Header
	Modules []*ir.Module
	Natives []string
}

// Snapshot collects the engine's linked modules into an Object, sorted by
// name.
func (e *Engine) Snapshot(h Header) *Object {
	names := e.ModuleNames()
	sort.Strings(names)

	obj := &Object{Header: h}
	for _, n := range names {
		obj.Modules = append(obj.Modules, e.modules[n].mod)
	}
	obj.Natives = e.Natives()
	sort.Strings(obj.Natives)
	return obj
}

func (o *Object) Encode(w io.Writer) error {
	err := gob.NewEncoder(w).Encode(o)
	if err != nil {
		return errors.Wrap(err, "encode object")
	}
	return nil
}

func DecodeObject(r io.Reader) (*Object, error) {
	var o Object
	err := gob.NewDecoder(r).Decode(&o)
	if err != nil {
		return nil, errors.Wrap(err, "decode object")
	}
	return &o, nil
}

// Load links every module of o into e. All required natives must already
// be registered.
func (e *Engine) Load(o *Object) error {
	for _, n := range o.Natives {
		if _, ok := e.natives[n]; !ok {
			return errors.New("object needs native %v", n)
		}
	}
	return e.ReplaceModules(o.Modules...)
}
