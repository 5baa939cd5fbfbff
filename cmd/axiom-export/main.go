package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/nikandfor/tlog"

	axiom "github.com/monadgroup/axiom-sub000"
	"github.com/monadgroup/axiom-sub000/internal/config"
	"github.com/monadgroup/axiom-sub000/internal/export"
)

func main() {
	cfg := config.Load()
	var (
		sampleRate = flag.Float64("sample-rate", cfg.Runtime.SampleRate, "sample rate baked into the image")
		bpm        = flag.Float64("bpm", cfg.Runtime.BPM, "tempo baked into the image")
		optLevel   = flag.Int("opt", cfg.Runtime.OptLevel, "optimization level 0-3")
		path       = flag.String("file", "", "path to a block source file")
		out        = flag.String("o", "", "output path without extension (default: source name)")
		prefix     = flag.String("prefix", "axiom_", "prefix of the exported symbols")
		target     = flag.String("target", "", "target recorded in the object (default: host)")
		isa        = flag.String("isa", "", "instruction set recorded in the object (default: host)")
		meta       = flag.String("meta", "c", "metadata format: c|go|json")
	)
	flag.Parse()

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(os.Stderr, tlog.LstdFlags))
	tlog.SetVerbosity(cfg.Verbose)

	if strings.TrimSpace(*path) == "" {
		log.Fatal("missing -file")
	}
	format, err := export.ParseFormat(*meta)
	if err != nil {
		log.Fatal(err)
	}

	src, err := homedir.Expand(*path)
	if err != nil {
		log.Fatal(err)
	}
	base := *out
	if base == "" {
		base = strings.TrimSuffix(src, filepath.Ext(src))
	}
	base, err = homedir.Expand(base)
	if err != nil {
		log.Fatal(err)
	}

	tr := tlog.Start("axiom-export", "file", src)
	defer tr.Finish()
	ctx := tlog.ContextWithSpan(context.Background(), tr)

	if err := run(ctx, src, base, format, export.Options{
		Target:         *target,
		InstructionSet: *isa,
		OptLevel:       *optLevel,
		Prefix:         *prefix,
	}, axiom.WithSampleRate(*sampleRate), axiom.WithBPM(*bpm), axiom.WithOptLevel(*optLevel)); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, src, base string, format export.Format, opts export.Options, ropts ...axiom.Option) error {
	code, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	r, err := axiom.New(ropts...)
	if err != nil {
		return err
	}
	defer r.Close()

	name := filepath.Base(base)
	b, err := r.CompileBlock(0, name, string(code))
	if err != nil {
		return fmt.Errorf("%s:%v", src, err)
	}
	if err := r.Commit(ctx, axiom.BlockPatch(b)); err != nil {
		return err
	}

	res, err := r.Export(ctx, opts)
	if err != nil {
		return err
	}

	obj, err := os.Create(base + ".axo")
	if err != nil {
		return err
	}
	if err := res.Object.Encode(obj); err != nil {
		_ = obj.Close()
		return err
	}
	if err := obj.Close(); err != nil {
		return err
	}

	mf, err := os.Create(base + format.Ext())
	if err != nil {
		return err
	}
	if err := export.WriteMetadata(mf, format, res.Metadata, name); err != nil {
		_ = mf.Close()
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}

	fmt.Printf("wrote %s.axo and %s%s (%d portals)\n", base, base, format.Ext(), len(res.Metadata.Portals))
	return nil
}
