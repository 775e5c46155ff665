// options.go - runtime configuration (spec.md's AMBIENT STACK: "the
// teacher has no config file; flags are parsed ad hoc in main.go.
// AeroCore's cmd/aerocore keeps that shape: flag stdlib package, a
// small internal/config.Options struct, no YAML/TOML layer").
//
// Grounded on the teacher's main.go argument handling (os.Args[1]/[2]
// validated by hand before NewSystemBus/NewCPU run), generalized from
// positional argument parsing into the stdlib flag package's FlagSet so
// cmd/aerocore can be invoked with named flags instead of a fixed
// argument order.
package config

import (
	"flag"
	"fmt"
)

// Options holds every runtime knob cmd/aerocore accepts. Zero value is
// not valid on its own; call Parse to fill in defaults.
type Options struct {
	// ProgramPath is the flat guest binary to load at reset, the
	// teacher's os.Args[2] generalized to a named flag.
	ProgramPath string

	// RAMSize is the guest physical RAM size in bytes.
	RAMSize uint64

	// Tier1Threshold is how many times a block must execute under
	// Tier-0 before Tier-1 compiles it (spec.md §4.3's promotion policy).
	// It is parsed and stored only: no package in this module reads it,
	// and no tier promotion takes place.
	Tier1Threshold uint64

	// Tier2Threshold is how many times a block must execute under
	// Tier-1 before Tier-2 trace formation considers it (spec.md §4.4).
	// Like Tier1Threshold, it is parsed and stored only; nothing reads it.
	Tier2Threshold uint64

	// BatchBudget is the instruction count RunBatch executes per call
	// (spec.md §4.2).
	BatchBudget int

	// LogLevel selects internal/telemetry's verbosity ("debug", "info",
	// "warn", "error").
	LogLevel string

	// LogJSON selects internal/telemetry's slog.JSONHandler over its
	// default text handler, for machine-consumed log pipelines.
	LogJSON bool
}

// Defaults returns the Options a bare cmd/aerocore invocation (no
// flags beyond -program) runs with.
func Defaults() Options {
	return Options{
		RAMSize:        16 << 20,
		Tier1Threshold: 50,
		Tier2Threshold: 1000,
		BatchBudget:    256,
		LogLevel:       "info",
	}
}

// Parse fills Options from args (typically os.Args[1:]), starting from
// Defaults(). Mirrors the teacher's "validate argv by hand, os.Exit on
// mistake" shape via FlagSet's ContinueOnError + an explicit error
// return instead of an inline os.Exit, so callers (tests, cmd/aerocore)
// control how a parse failure is reported.
func Parse(progName string, args []string) (Options, error) {
	opts := Defaults()
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)

	fs.StringVar(&opts.ProgramPath, "program", "", "guest binary to load at reset")
	fs.Uint64Var(&opts.RAMSize, "ram", opts.RAMSize, "guest physical RAM size in bytes")
	fs.Uint64Var(&opts.Tier1Threshold, "tier1-threshold", opts.Tier1Threshold, "Tier-0 executions before Tier-1 compiles a block")
	fs.Uint64Var(&opts.Tier2Threshold, "tier2-threshold", opts.Tier2Threshold, "Tier-1 executions before Tier-2 trace formation considers a block")
	fs.IntVar(&opts.BatchBudget, "batch-budget", opts.BatchBudget, "instructions executed per RunBatch call")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "debug, info, warn, or error")
	fs.BoolVar(&opts.LogJSON, "log-json", opts.LogJSON, "emit structured logs as JSON instead of text")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if opts.ProgramPath == "" {
		return Options{}, fmt.Errorf("config: -program is required")
	}
	return opts, nil
}
