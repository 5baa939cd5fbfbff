// Package config reads runtime defaults from the environment.
package config

import (
	"github.com/xyproto/env/v2"

	"github.com/monadgroup/axiom-sub000/internal/runtime"
)

const (
	EnvSampleRate = "AXIOM_SAMPLE_RATE"
	EnvBPM        = "AXIOM_BPM"
	EnvOptLevel   = "AXIOM_OPT_LEVEL"
	EnvIncludeUI  = "AXIOM_INCLUDE_UI"
	EnvLockMemory = "AXIOM_LOCK_MEMORY"
	EnvVerbose    = "AXIOM_LOG_VERBOSE"
)

type Config struct {
	Runtime runtime.Options
	// Verbose is a comma separated list of log topics, as accepted by
	// tlog's verbosity filter.
	Verbose string
}

// Load returns the defaults overridden by any AXIOM_* variables set.
// Values that do not parse, or are out of range, keep the default.
func Load() Config {
	def := runtime.DefaultOptions()
	c := Config{
		Runtime: runtime.Options{
			SampleRate: env.Float64(EnvSampleRate, def.SampleRate),
			BPM:        env.Float64(EnvBPM, def.BPM),
			OptLevel:   env.Int(EnvOptLevel, def.OptLevel),
			IncludeUI:  env.Bool(EnvIncludeUI),
			LockMemory: env.Bool(EnvLockMemory),
		},
		Verbose: env.Str(EnvVerbose),
	}
	if c.Runtime.SampleRate <= 0 {
		c.Runtime.SampleRate = def.SampleRate
	}
	if c.Runtime.BPM <= 0 {
		c.Runtime.BPM = def.BPM
	}
	if c.Runtime.OptLevel < 0 || c.Runtime.OptLevel > 3 {
		c.Runtime.OptLevel = def.OptLevel
	}
	return c
}
