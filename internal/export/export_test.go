package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/codegen"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
	axruntime "github.com/monadgroup/axiom-sub000/internal/runtime"
)

// deployed returns a runtime running "out = in * 2" with portals in and
// out.
func deployed(t *testing.T) *axruntime.Runtime {
	t.Helper()
	r, err := axruntime.New(axruntime.DefaultOptions())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	b, err := axruntime.CompileBlock(mir.BlockID(r.AllocID()), "gain", "out:audio = in:audio * 2")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := &mir.Surface{ID: mir.RootSurfaceID, Nodes: []mir.Node{{Data: mir.CustomData(b.ID)}}}
	for i, c := range b.Controls {
		s.Groups = append(s.Groups, mir.ValueGroup{ValueType: c.Type.ValueType(), Source: mir.SocketSource(i)})
		s.Nodes[0].Sockets = append(s.Nodes[0].Sockets, mir.ValueSocket{GroupID: i, ValueRead: c.ValueRead, ValueWritten: c.ValueWritten})
	}
	tx := &mir.Transaction{
		Root: &mir.Root{Sockets: []mir.RootSocket{
			{Name: "in", Kind: mir.PortalInput, Type: mir.Num()},
			{Name: "out level", Kind: mir.PortalOutput, Type: mir.Num()},
		}},
		Surfaces: []*mir.Surface{s},
		Blocks:   []*mir.Block{b},
	}
	if err := r.Commit(context.Background(), tx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return r
}

func TestExportedObjectRuns(t *testing.T) {
	r := deployed(t)
	res, err := Export(context.Background(), r, Options{Prefix: "synth_", OptLevel: 2})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if r.Engine().HasModule(codegen.ExportModule) {
		t.Fatalf("export module left linked")
	}

	var buf bytes.Buffer
	if err := res.Object.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	obj, err := jit.DecodeObject(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obj.Header.Prefix != "synth_" {
		t.Fatalf("header = %+v", obj.Header)
	}

	e := jit.New()
	dsp.Register(e)
	if err := e.Load(obj); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := e.Call("synth_init"); err != nil {
		t.Fatalf("init: %v", err)
	}

	portal := func(i int64) jit.Addr {
		ret, err := e.Call("synth_portal", jit.IntReg(i))
		if err != nil {
			t.Fatalf("portal %d: %v", i, err)
		}
		return ret.Addr()
	}
	m := e.Memory()
	dsp.WriteNum(m, portal(0), dsp.NumOf(0.25, mir.FormNone))
	if _, err := e.Call("synth_update"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := dsp.ReadNum(m, portal(1)); got.Left != 0.5 || got.Right != 0.5 {
		t.Fatalf("out = %+v", got)
	}
	if !portal(2).IsNull() || !portal(-1).IsNull() {
		t.Fatalf("out of range portal not null")
	}
	if _, err := e.Call("synth_cleanup"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestExportTwice(t *testing.T) {
	r := deployed(t)
	for i := 0; i < 2; i++ {
		if _, err := Export(context.Background(), r, Options{}); err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
	}
	if _, err := Export(context.Background(), r, Options{Prefix: "9x"}); err == nil {
		t.Fatalf("bad prefix accepted")
	}
}

func TestExportNeedsImage(t *testing.T) {
	r, err := axruntime.New(axruntime.DefaultOptions())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer r.Close()
	if _, err := Export(context.Background(), r, Options{}); err == nil {
		t.Fatalf("exported an empty runtime")
	}
}

func TestWriteMetadata(t *testing.T) {
	r := deployed(t)
	res, err := Export(context.Background(), r, Options{Prefix: "ax_", Target: "x86_64-unknown-linux", InstructionSet: "avx2"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	md := res.Metadata
	if len(md.Portals) != 2 || md.Portals[1].Name != "out level" || md.Portals[1].Kind != "output" {
		t.Fatalf("portals = %+v", md.Portals)
	}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatC, []string{
			"#ifndef SYNTH_H",
			"#define AX_SAMPLE_RATE 44100",
			"#define AX_PORTAL_OUT_LEVEL 1 /* output num */",
			"void ax_update(void);",
			"void *ax_portal(long long id);",
		}},
		{FormatGo, []string{
			"package synth",
			"Portalout_level = 1 // output num",
			`SymInit    = "ax_init"`,
		}},
		{FormatJSON, []string{
			`"target": "x86_64-unknown-linux"`,
			`"cleanup": "ax_cleanup"`,
		}},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		if err := WriteMetadata(&buf, tc.format, md, "synth"); err != nil {
			t.Fatalf("%v: %v", tc.format, err)
		}
		for _, w := range tc.want {
			if !strings.Contains(buf.String(), w) {
				t.Fatalf("%v metadata missing %q:\n%s", tc.format, w, buf.String())
			}
		}
		if tc.format == FormatJSON {
			var back Metadata
			if err := json.Unmarshal(buf.Bytes(), &back); err != nil || back.BPM != md.BPM {
				t.Fatalf("json = %+v, %v", back, err)
			}
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"c": FormatC, " GO ": FormatGo, "json": FormatJSON} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Fatalf("%q: %v %v", in, got, err)
		}
	}
	if _, err := ParseFormat("rust"); err == nil {
		t.Fatalf("unknown format accepted")
	}
}

func TestPortalIdent(t *testing.T) {
	for in, want := range map[string]string{"out": "out", "out level": "out_level", "2nd": "_2nd", "": "_"} {
		if got := PortalIdent(in); got != want {
			t.Fatalf("%q -> %q, want %q", in, got, want)
		}
	}
}
