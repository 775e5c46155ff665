// main.go - aerocore entry point
//
// Grounded on the teacher's main.go: build the bus, build the CPU, load
// the guest program, run. AeroCore generalizes the teacher's hand-parsed
// os.Args[1]/[2] + boilerPlate() banner + "go cpu.Execute()" shape into
// config.Parse's named flags, a structured internal/telemetry logger in
// place of boilerPlate's fmt.Println calls, and a synchronous Tier-0
// batch loop in place of the teacher's always-running goroutine, since
// nothing here drives a GUI event loop to run alongside it.
package main

import (
	"fmt"
	"os"

	"github.com/aerocore/aerocore/internal/config"
	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/memory"
	"github.com/aerocore/aerocore/internal/telemetry"
	"github.com/aerocore/aerocore/internal/tier0"
)

func main() {
	os.Exit(run(os.Args[0], os.Args[1:]))
}

func run(progName string, args []string) int {
	opts, err := config.Parse(progName, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := telemetry.New(opts, os.Stderr)
	if err != nil {
		logger = telemetry.Default()
		logger.Warn("falling back to default logger", "error", err)
	}
	var counters telemetry.Counters

	program, err := os.ReadFile(opts.ProgramPath)
	if err != nil {
		logger.Error("failed to read program", "path", opts.ProgramPath, "error", err)
		return 1
	}

	ram := memory.NewPhysicalMemory(opts.RAMSize)
	bus := memory.NewMemoryBus(ram)
	if err := bus.TryWriteBytes(0, program); err != nil {
		logger.Error("failed to load program into RAM", "error", err)
		return 1
	}

	cpu := cpustate.New(cpustate.ModeBit32)
	var events cpustate.PendingEvents

	logger.Info("starting aerocore",
		"program", opts.ProgramPath,
		"ram_bytes", opts.RAMSize,
		"batch_budget", opts.BatchBudget,
	)

	for {
		result, err := tier0.RunBatch(tier0.Config{}, &events, cpu, bus, opts.BatchBudget)
		if err != nil {
			logger.Error("batch execution failed", "error", err, "rip", cpu.RIP)
			counters.LogSummary(logger)
			return 1
		}
		counters.Tier0Batches.Add(1)
		counters.Tier0Instructions.Add(int64(result.Executed))

		switch result.Exit.Kind {
		case tier0.Completed, tier0.Branch, tier0.Assist:
			continue
		case tier0.Halted:
			logger.Info("CPU halted with no pending work", "rip", cpu.RIP)
			counters.LogSummary(logger)
			return 0
		case tier0.Exception:
			fault := &tier0.CPUFault{Kind: result.Exit.FaultKind, ErrorCode: result.Exit.ErrorCode, CR2: result.Exit.CR2}
			logger.Error("unhandled CPU fault", "detail", tier0.DescribeFault(bus, cpu, fault, cpu.RIP))
			counters.LogSummary(logger)
			return 1
		case tier0.CpuExit:
			logger.Info("guest requested shutdown", "rip", cpu.RIP)
			counters.LogSummary(logger)
			return 0
		case tier0.BiosInterrupt:
			// Real-mode BIOS vector dispatch is guest-tooling territory
			// (spec.md's Non-goals) beyond acknowledging it occurred.
			logger.Debug("BIOS interrupt", "vector", result.Exit.Vector)
			continue
		default:
			logger.Error("unrecognized batch exit", "kind", result.Exit.Kind)
			counters.LogSummary(logger)
			return 1
		}
	}
}
