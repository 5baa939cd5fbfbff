package config

import (
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/runtime"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{EnvSampleRate, EnvBPM, EnvOptLevel, EnvIncludeUI, EnvLockMemory, EnvVerbose} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Runtime != runtime.DefaultOptions() {
		t.Fatalf("defaults = %+v, want %+v", c.Runtime, runtime.DefaultOptions())
	}
	if c.Verbose != "" {
		t.Fatalf("verbose = %q", c.Verbose)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(EnvSampleRate, "48000")
	t.Setenv(EnvBPM, "128.5")
	t.Setenv(EnvOptLevel, "0")
	t.Setenv(EnvIncludeUI, "true")
	t.Setenv(EnvLockMemory, "1")
	t.Setenv(EnvVerbose, "dump_ir,dump_passes")

	c := Load()
	want := runtime.Options{SampleRate: 48000, BPM: 128.5, OptLevel: 0, IncludeUI: true, LockMemory: true}
	if c.Runtime != want {
		t.Fatalf("options = %+v, want %+v", c.Runtime, want)
	}
	if c.Verbose != "dump_ir,dump_passes" {
		t.Fatalf("verbose = %q", c.Verbose)
	}
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	t.Setenv(EnvSampleRate, "-1")
	t.Setenv(EnvBPM, "0")
	t.Setenv(EnvOptLevel, "9")

	c := Load()
	def := runtime.DefaultOptions()
	if c.Runtime.SampleRate != def.SampleRate || c.Runtime.BPM != def.BPM || c.Runtime.OptLevel != def.OptLevel {
		t.Fatalf("options = %+v", c.Runtime)
	}
}
