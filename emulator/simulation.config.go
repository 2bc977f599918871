package emulator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Architecture uint8

const (
	ARCH_SINGLE_CYCLE        Architecture = iota // One instruction per step
	ARCH_MULTI_CYCLE         Architecture = iota // One micro-step per step
	ARCH_PIPELINED           Architecture = iota // Five stage pipeline, one cycle per step
	ARCH_MULTI_ALU_PIPELINED Architecture = iota // Pipeline with parallel functional units
)

func (arch Architecture) String() string {
	switch arch {
	case ARCH_SINGLE_CYCLE:
		return "single-cycle"
	case ARCH_MULTI_CYCLE:
		return "multi-cycle"
	case ARCH_PIPELINED:
		return "pipelined"
	case ARCH_MULTI_ALU_PIPELINED:
		return "multi-alu"
	}
	return fmt.Sprintf("Architecture(%d)", uint8(arch))
}

func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(s) {
	case "single", "single-cycle":
		return ARCH_SINGLE_CYCLE, nil
	case "multi", "multi-cycle":
		return ARCH_MULTI_CYCLE, nil
	case "pipelined", "pipeline":
		return ARCH_PIPELINED, nil
	case "multi-alu", "multialu", "multi-alu-pipelined":
		return ARCH_MULTI_ALU_PIPELINED, nil
	}
	return 0, fmt.Errorf("unknown architecture %q", s)
}

// What happens to runtime instruction errors and unhandled syscalls
type TrapPolicy uint8

const (
	TRAP_POLICY_AUTO   TrapPolicy = iota // Trap only if the program has a kernel handler
	TRAP_POLICY_ALWAYS TrapPolicy = iota // Always jump to the exception handler
	TRAP_POLICY_FATAL  TrapPolicy = iota // Always stop the simulation
)

func (policy TrapPolicy) String() string {
	switch policy {
	case TRAP_POLICY_ALWAYS:
		return "always"
	case TRAP_POLICY_FATAL:
		return "fatal"
	}
	return "auto"
}

// A group of identical functional units of the multi-ALU pipeline
type FunctionalUnitConfig struct {
	Name    string
	Classes []ExecutionClass // Instruction classes the unit accepts
	Latency int              // Cycles spent in the unit, at least 1
	Count   int
}

type SimulationConfig struct {
	UndoLimit       int           // Steps kept in the undo history
	CycleDelay      time.Duration // Pause between steps while running
	MissPenalty     int           // Extra pipeline cycles per cache miss
	FunctionalUnits []FunctionalUnitConfig
	TrapPolicy      TrapPolicy
	Logger          *logrus.Entry
}

func DefaultFunctionalUnits() []FunctionalUnitConfig {
	return []FunctionalUnitConfig{
		{Name: "alu", Classes: []ExecutionClass{CLASS_ALU, CLASS_MEMORY, CLASS_BRANCH, CLASS_SYSTEM}, Latency: 1, Count: 2},
		{Name: "muldiv", Classes: []ExecutionClass{CLASS_MULDIV}, Latency: 4, Count: 1},
		{Name: "fpu", Classes: []ExecutionClass{CLASS_FPU}, Latency: 3, Count: 1},
	}
}

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		UndoLimit:       1024,
		MissPenalty:     0, // misses only show in the cache statistics
		FunctionalUnits: DefaultFunctionalUnits(),
		TrapPolicy:      TRAP_POLICY_AUTO,
	}
}

type Option func(*SimulationConfig)

func WithUndoLimit(limit int) Option {
	return func(c *SimulationConfig) { c.UndoLimit = limit }
}

func WithCycleDelay(delay time.Duration) Option {
	return func(c *SimulationConfig) { c.CycleDelay = delay }
}

func WithMissPenalty(cycles int) Option {
	return func(c *SimulationConfig) { c.MissPenalty = cycles }
}

func WithFunctionalUnits(units ...FunctionalUnitConfig) Option {
	return func(c *SimulationConfig) { c.FunctionalUnits = units }
}

func WithTrapPolicy(policy TrapPolicy) Option {
	return func(c *SimulationConfig) { c.TrapPolicy = policy }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *SimulationConfig) { c.Logger = log }
}

func discardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
