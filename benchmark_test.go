package axiom

import (
	"context"
	"testing"
)

func BenchmarkRenderFrames(b *testing.B) {
	r, err := New(WithSampleRate(48000))
	if err != nil {
		b.Fatalf("new runtime: %v", err)
	}
	defer r.Close()
	blk, err := r.CompileBlock(0, "voice", "out:audio = lowBqFilter(sawOsc(110), 2000, 0.7) * 0.5")
	if err != nil {
		b.Fatalf("compile: %v", err)
	}
	if err := r.Commit(context.Background(), BlockPatch(blk)); err != nil {
		b.Fatalf("commit: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := RenderFrames(r, 0, 2048); err != nil {
			b.Fatalf("render: %v", err)
		}
	}
}

func BenchmarkCommit(b *testing.B) {
	r, err := New()
	if err != nil {
		b.Fatalf("new runtime: %v", err)
	}
	defer r.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		blk, err := r.CompileBlock(0, "gain", "out:audio = in:audio * 2")
		if err != nil {
			b.Fatalf("compile: %v", err)
		}
		if err := r.Commit(context.Background(), BlockPatch(blk)); err != nil {
			b.Fatalf("commit: %v", err)
		}
	}
}
