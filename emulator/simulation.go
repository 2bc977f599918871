package emulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type SimulationState uint32

const (
	STATE_INITIAL  SimulationState = iota // Created or reset, nothing executed
	STATE_RUNNING  SimulationState = iota // ExecuteAll in progress
	STATE_PAUSED   SimulationState = iota // Between steps
	STATE_FINISHED SimulationState = iota // Program ended or failed
)

func (state SimulationState) String() string {
	switch state {
	case STATE_INITIAL:
		return "initial"
	case STATE_RUNNING:
		return "running"
	case STATE_PAUSED:
		return "paused"
	case STATE_FINISHED:
		return "finished"
	}
	return fmt.Sprintf("SimulationState(%d)", uint32(state))
}

type EventKind uint8

const (
	EVENT_START      EventKind = iota // A run began
	EVENT_STOP       EventKind = iota // A run ended
	EVENT_LOCK       EventKind = iota // A step is about to mutate the state
	EVENT_UNLOCK     EventKind = iota // The step finished, the state can be read
	EVENT_RESET      EventKind = iota
	EVENT_UNDO       EventKind = iota
	EVENT_BREAKPOINT EventKind = iota // A breakpoint or watchpoint paused the run
	EVENT_FINISH     EventKind = iota // The simulation reached STATE_FINISHED
)

func (kind EventKind) String() string {
	names := [...]string{"start", "stop", "lock", "unlock", "reset", "undo", "breakpoint", "finish"}
	if int(kind) < len(names) {
		return names[kind]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(kind))
}

type Event struct {
	Kind  EventKind
	Cycle uint64
	PC    uint32
	Err   error
}

// Called synchronously on the goroutine mutating the simulation
type Listener func(Event)

// Per-architecture stepping state machine
type stepper interface {
	// Advances one step. Returns false if nothing happened, which only
	// occurs when a breakpoint blocks the fetch
	step(sim *Simulation) (bool, error)
	finished(sim *Simulation) bool
	snapshot() any
	restore(state any)
	reset()
	stages() []StageView
}

// A simulation of a program on one architecture. Exactly one goroutine
// mutates it at a time: the caller for NextStep, or the runner goroutine
// while ExecuteAll is in progress
type Simulation struct {
	Registers  *RegisterSet
	Memory     Memory
	Interrupts *ExternalInterruptController
	Cop0       *Cop0
	Debugger   *Debugger

	arch         Architecture
	config       SimulationConfig
	log          *logrus.Entry
	instructions *InstructionSet
	syscalls     *SyscallTable
	program      *Program
	engine       stepper

	runMu sync.Mutex // Held by the mutating goroutine
	mu    sync.Mutex // Held while a step mutates the state
	state atomic.Uint32
	stop  atomic.Bool

	doneMu sync.Mutex
	done   chan struct{}
	runErr error

	cycles   uint64
	retired  uint64
	nextID   uint64
	err      error
	exited   bool
	exitCode int

	history *History
	delta   *stepDelta

	listenersMu sync.Mutex
	listeners   []Listener

	resumeAt uint32
	resuming bool
	breakHit bool
	watchHit bool
}

// Creates a simulation of `program` on `arch`. `mem` may be a cache
// hierarchy built with BuildHierarchy; nil uses the default MIPS32 memory
func NewSimulation(arch Architecture, program *Program, mem Memory, registry Registry, opts ...Option) (*Simulation, error) {
	config := DefaultSimulationConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = discardLogger()
	}
	if program == nil {
		program = NewProgram()
	}
	if mem == nil {
		mem = NewMIPS32Memory(false)
	}
	if registry.Instructions == nil {
		registry.Instructions = NewMIPS32InstructionSet()
	}
	if registry.Syscalls == nil {
		registry.Syscalls = NewSyscallTable()
	}

	sim := &Simulation{
		Registers:    NewRegisterSet(),
		Memory:       mem,
		Interrupts:   NewExternalInterruptController(),
		Debugger:     NewDebugger(),
		arch:         arch,
		config:       config,
		log:          config.Logger.WithField("arch", arch.String()),
		instructions: registry.Instructions,
		syscalls:     registry.Syscalls,
		program:      program,
		history:      NewHistory(config.UndoLimit),
	}
	sim.Cop0 = NewCop0(sim.Registers)

	switch arch {
	case ARCH_SINGLE_CYCLE:
		sim.engine = &singleCycle{}
	case ARCH_MULTI_CYCLE:
		sim.engine = &multiCycle{}
	case ARCH_PIPELINED:
		sim.engine = newPipeline(false, []FunctionalUnitConfig{{
			Name:    "ex",
			Classes: []ExecutionClass{CLASS_ALU, CLASS_MULDIV, CLASS_FPU, CLASS_MEMORY, CLASS_BRANCH, CLASS_SYSTEM},
			Latency: 1,
			Count:   1,
		}})
	case ARCH_MULTI_ALU_PIPELINED:
		if err := validateUnits(config.FunctionalUnits); err != nil {
			return nil, err
		}
		sim.engine = newPipeline(true, config.FunctionalUnits)
	default:
		return nil, fmt.Errorf("unknown architecture %v", arch)
	}

	if err := program.Load(mem); err != nil {
		return nil, err
	}
	sim.Registers.PC.SetValue(program.Entry)
	sim.Registers.SetListener(sim)
	sim.nextID = 1
	sim.state.Store(uint32(STATE_INITIAL))
	return sim, nil
}

func validateUnits(units []FunctionalUnitConfig) error {
	covered := make(map[ExecutionClass]bool)
	for _, unit := range units {
		if unit.Count < 1 || unit.Latency < 1 {
			return fmt.Errorf("functional unit %q needs a positive count and latency", unit.Name)
		}
		for _, class := range unit.Classes {
			covered[class] = true
		}
	}
	for class := CLASS_ALU; class <= CLASS_SYSTEM; class++ {
		if !covered[class] {
			return fmt.Errorf("no functional unit accepts %v instructions", class)
		}
	}
	return nil
}

func (sim *Simulation) Architecture() Architecture { return sim.arch }
func (sim *Simulation) Config() SimulationConfig   { return sim.config }
func (sim *Simulation) Program() *Program          { return sim.program }
func (sim *Simulation) Instructions() *InstructionSet {
	return sim.instructions
}

func (sim *Simulation) State() SimulationState {
	return SimulationState(sim.state.Load())
}

func (sim *Simulation) setState(state SimulationState) {
	sim.state.Store(uint32(state))
}

// Number of steps executed. For the multi-cycle architecture a step is a
// micro-step, for the pipelined ones a clock cycle
func (sim *Simulation) Cycles() uint64 { return sim.cycles }

// Number of instructions that completed
func (sim *Simulation) Retired() uint64 { return sim.retired }

// Error that finished the simulation, nil if it ended normally
func (sim *Simulation) Err() error { return sim.err }

// Returns the code passed to the exit syscall and true if the program
// exited through it
func (sim *Simulation) ExitCode() (int, bool) { return sim.exitCode, sim.exited }

// Number of steps that can be undone
func (sim *Simulation) UndoAvailable() int { return sim.history.Len() }

// Returns the current contents of the architecture stages
func (sim *Simulation) Stages() []StageView { return sim.engine.stages() }

func (sim *Simulation) AddBreakpoint(address uint32)    { sim.Debugger.AddBreakpoint(address) }
func (sim *Simulation) RemoveBreakpoint(address uint32) { sim.Debugger.RemoveBreakpoint(address) }

// Interrupt masking, read by the interrupt controller
func (sim *Simulation) AreInterruptsEnabled() bool  { return sim.Cop0.IrqEnabled() }
func (sim *Simulation) InterruptPriorityLevel() int { return sim.Cop0.IPL() }

// Registers `listener` for every future event
func (sim *Simulation) Subscribe(listener Listener) {
	sim.listenersMu.Lock()
	sim.listeners = append(sim.listeners, listener)
	sim.listenersMu.Unlock()
}

func (sim *Simulation) emit(kind EventKind, err error) {
	sim.listenersMu.Lock()
	listeners := append([]Listener(nil), sim.listeners...)
	sim.listenersMu.Unlock()

	event := Event{Kind: kind, Cycle: sim.cycles, PC: sim.Registers.PC.Value(), Err: err}
	for _, listener := range listeners {
		listener(event)
	}
}

// Runs `fn` while no step is in progress
func (sim *Simulation) Inspect(fn func(sim *Simulation)) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	fn(sim)
}

// RegisterListener implementation, records undo deltas

func (sim *Simulation) ValueChanged(reg *Register, old uint32) {
	if sim.delta != nil {
		sim.delta.registers = append(sim.delta.registers, registerChange{reg: reg, value: old})
	}
}

func (sim *Simulation) LockChanged(reg *Register, oldOwner uint64) {
	if sim.delta != nil {
		sim.delta.registers = append(sim.delta.registers, registerChange{reg: reg, owner: oldOwner, lock: true})
	}
}

func (sim *Simulation) beginDelta() *stepDelta {
	levels := CacheLevels(sim.Memory)
	delta := &stepDelta{
		stats:     make([]CacheStats, len(levels)),
		cycles:    sim.cycles,
		retired:   sim.retired,
		nextID:    sim.nextID,
		arch:      sim.engine.snapshot(),
		exited:    sim.exited,
		exitCode:  sim.exitCode,
		irqBefore: sim.Interrupts.snapshot(),
	}
	for i, level := range levels {
		delta.stats[i] = level.Stats()
	}
	return delta
}

// Executes one step of the architecture
func (sim *Simulation) step() (bool, error) {
	sim.emit(EVENT_LOCK, nil)
	sim.mu.Lock()

	sim.delta = sim.beginDelta()
	progressed, err := sim.engine.step(sim)
	if progressed {
		sim.cycles++
		sim.delta.irqAfter = sim.Interrupts.snapshot()
		sim.history.Push(sim.delta)
	}
	sim.delta = nil

	finished := false
	if err != nil {
		sim.err = err
		sim.setState(STATE_FINISHED)
		finished = true
		sim.log.WithError(err).WithField("cycle", sim.cycles).Error("simulation failed")
	} else if sim.engine.finished(sim) {
		sim.setState(STATE_FINISHED)
		finished = true
		sim.log.WithFields(logrus.Fields{
			"cycles":  sim.cycles,
			"retired": sim.retired,
		}).Info("simulation finished")
	} else if sim.State() == STATE_INITIAL {
		sim.setState(STATE_PAUSED)
	}

	if progressed && sim.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		sim.log.WithFields(logrus.Fields{
			"pc":    fmt.Sprintf("0x%08x", sim.Registers.PC.Value()),
			"cycle": sim.cycles,
		}).Debug("step")
	}

	sim.mu.Unlock()
	sim.emit(EVENT_UNLOCK, nil)
	if finished {
		sim.emit(EVENT_FINISH, err)
	}
	return progressed, err
}

// Executes a single step. Breakpoints are ignored
func (sim *Simulation) NextStep() error {
	if !sim.runMu.TryLock() {
		return ErrSimulationRunning
	}
	defer sim.runMu.Unlock()

	if sim.State() == STATE_FINISHED {
		return ErrFinished
	}
	_, err := sim.step()
	return err
}

// Steps until the program ends, fails, hits a breakpoint or watchpoint,
// Stop is called or `ctx` is cancelled. Returns the error that finished
// the simulation, if any
func (sim *Simulation) ExecuteAll(ctx context.Context) error {
	if !sim.runMu.TryLock() {
		return ErrSimulationRunning
	}
	defer sim.runMu.Unlock()
	sim.stop.Store(false)
	return sim.run(ctx)
}

func (sim *Simulation) run(ctx context.Context) error {
	if sim.State() == STATE_FINISHED {
		return ErrFinished
	}

	sim.setState(STATE_RUNNING)
	sim.resumeAt = sim.Registers.PC.Value()
	sim.resuming = true
	sim.breakHit = false
	sim.watchHit = false

	sim.log.WithField("pc", fmt.Sprintf("0x%08x", sim.resumeAt)).Info("run started")
	sim.emit(EVENT_START, nil)

	var err error
	var timer *time.Timer
	for !sim.stop.Load() && ctx.Err() == nil {
		if _, err = sim.step(); err != nil || sim.State() == STATE_FINISHED {
			break
		}
		if sim.breakHit || sim.watchHit {
			sim.log.WithField("pc", fmt.Sprintf("0x%08x", sim.Registers.PC.Value())).Info("breakpoint reached")
			sim.emit(EVENT_BREAKPOINT, nil)
			break
		}
		if sim.config.CycleDelay > 0 {
			if timer == nil {
				timer = time.NewTimer(sim.config.CycleDelay)
			} else {
				timer.Reset(sim.config.CycleDelay)
			}
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
	}
	if timer != nil {
		timer.Stop()
	}

	if sim.State() == STATE_RUNNING {
		sim.setState(STATE_PAUSED)
	}
	sim.log.WithField("cycles", sim.cycles).Info("run stopped")
	sim.emit(EVENT_STOP, err)
	return err
}

// Runs ExecuteAll on a new goroutine. Use Stop to pause it and Wait to
// collect its result
func (sim *Simulation) Start(ctx context.Context) error {
	if !sim.runMu.TryLock() {
		return ErrSimulationRunning
	}
	if sim.State() == STATE_FINISHED {
		sim.runMu.Unlock()
		return ErrFinished
	}

	done := make(chan struct{})
	sim.doneMu.Lock()
	sim.done = done
	sim.runErr = nil
	sim.doneMu.Unlock()

	sim.stop.Store(false)
	sim.setState(STATE_RUNNING)
	go func() {
		err := sim.run(ctx)
		sim.doneMu.Lock()
		sim.runErr = err
		sim.doneMu.Unlock()
		sim.runMu.Unlock()
		close(done)
	}()
	return nil
}

// Requests the running simulation to pause at the next step boundary
func (sim *Simulation) Stop() {
	sim.stop.Store(true)
}

// Blocks until the run started by Start ends and returns its error
func (sim *Simulation) Wait() error {
	sim.doneMu.Lock()
	done := sim.done
	sim.doneMu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	sim.doneMu.Lock()
	defer sim.doneMu.Unlock()
	return sim.runErr
}

// Reverts the last step
func (sim *Simulation) UndoStep() error {
	if !sim.runMu.TryLock() {
		return ErrSimulationRunning
	}
	defer sim.runMu.Unlock()

	sim.mu.Lock()
	delta := sim.history.Pop()
	if delta == nil {
		sim.mu.Unlock()
		return ErrNothingToUndo
	}

	for i := len(delta.memory) - 1; i >= 0; i-- {
		change := delta.memory[i]
		if err := sim.Memory.RestoreBytes(change.address, change.old[:change.size]); err != nil {
			panicFmt("undo: restoring 0x%08x: %v", change.address, err)
		}
	}
	for i := len(delta.registers) - 1; i >= 0; i-- {
		change := delta.registers[i]
		if change.lock {
			change.reg.restoreLock(change.owner)
		} else {
			change.reg.restoreValue(change.value)
		}
	}
	for i, level := range CacheLevels(sim.Memory) {
		if i < len(delta.stats) {
			level.stats = delta.stats[i]
		}
	}
	sim.Interrupts.rewind(delta.irqBefore, delta.irqAfter)
	sim.engine.restore(delta.arch)
	sim.cycles = delta.cycles
	sim.retired = delta.retired
	sim.nextID = delta.nextID
	sim.exited = delta.exited
	sim.exitCode = delta.exitCode
	sim.err = nil

	if sim.cycles == 0 && sim.history.IsEmpty() {
		sim.setState(STATE_INITIAL)
	} else {
		sim.setState(STATE_PAUSED)
	}
	sim.mu.Unlock()

	sim.log.WithField("cycle", sim.cycles).Debug("step undone")
	sim.emit(EVENT_UNDO, nil)
	return nil
}

// Restores the state the simulation had when it was created
func (sim *Simulation) Reset() error {
	if !sim.runMu.TryLock() {
		return ErrSimulationRunning
	}
	defer sim.runMu.Unlock()

	sim.mu.Lock()
	sim.Registers.Reset()
	sim.Registers.PC.restoreValue(sim.program.Entry)
	sim.Memory.Reset()
	err := sim.program.Load(sim.Memory)
	sim.Interrupts.Reset()
	sim.history.Clear()
	sim.engine.reset()
	sim.cycles = 0
	sim.retired = 0
	sim.nextID = 1
	sim.err = nil
	sim.exited = false
	sim.exitCode = 0
	sim.setState(STATE_INITIAL)
	sim.mu.Unlock()

	sim.log.Info("simulation reset")
	sim.emit(EVENT_RESET, nil)
	return err
}

// Returns true if runtime errors and unhandled syscalls jump to the
// exception handler
func (sim *Simulation) trapsEnabled() bool {
	switch sim.config.TrapPolicy {
	case TRAP_POLICY_ALWAYS:
		return true
	case TRAP_POLICY_FATAL:
		return false
	}
	return sim.program.HasKernelHandler()
}

func (sim *Simulation) enterException(code ExceptionCode, epc uint32, level int, badAddress uint32) {
	handler := sim.Cop0.EnterException(code, epc, level, badAddress)
	sim.Registers.PC.SetValue(handler)
	sim.log.WithFields(logrus.Fields{
		"code":  code.String(),
		"epc":   fmt.Sprintf("0x%08x", epc),
		"level": level,
	}).Warn("exception taken")
}

// Handles the failure `err` of the instruction at `address`. Runtime
// instruction errors become exceptions when traps are enabled, anything
// else is returned and stops the simulation with PC at the instruction
func (sim *Simulation) fault(address uint32, err error) error {
	var runtime *RuntimeInstructionError
	if errors.As(err, &runtime) && sim.trapsEnabled() {
		sim.enterException(runtime.Code, runtime.Address, 0, runtime.BadAddress)
		return nil
	}
	sim.Registers.PC.SetValue(address)
	return err
}

// Takes a pending software exception, or a hardware interrupt if they're
// enabled. `pc` is the address of the next instruction to fetch
func (sim *Simulation) pollInterrupts(pc uint32) (bool, error) {
	if ex, ok := sim.Interrupts.TakeSoftwareException(); ok {
		return true, sim.takeSoftwareException(ex)
	}
	if sim.Interrupts.IsRequestingInterrupts(sim) {
		level := sim.Interrupts.GetRequestedIPL()
		sim.enterException(EXCEPTION_INTERRUPT, pc, level, 0)
		return true, nil
	}
	return false, nil
}

func (sim *Simulation) takeSoftwareException(ex SoftwareException) error {
	if !sim.trapsEnabled() {
		if ex.Err != nil {
			return ex.Err
		}
		return fmt.Errorf("unhandled %v at 0x%08x", ex.Code, ex.Address)
	}
	sim.enterException(ex.Code, ex.Address, 0, 0)
	return nil
}

// Returns true if a run must pause before fetching `pc`. The address the
// run resumed from is skipped once so a run can continue from a breakpoint
func (sim *Simulation) shouldBreak(pc uint32) bool {
	if sim.State() != STATE_RUNNING {
		return false
	}
	if sim.resuming {
		sim.resuming = false
		if pc == sim.resumeAt {
			return false
		}
	}
	if sim.Debugger.HasBreakpoint(pc) {
		sim.breakHit = true
		return true
	}
	return false
}

// Reads the word at `pc` and decodes it. Fetch and decoding errors are
// deferred to the execution, so unaligned fetches can become address
// error exceptions
func (sim *Simulation) fetch(pc uint32) *Execution {
	word, err := sim.Memory.GetWord(pc)
	if err != nil {
		x := newExecution(sim, sim.nextID, pc, AssembledInstruction{})
		sim.nextID++
		x.Err = addressFault(err, pc)
		return x
	}
	inst, err := sim.instructions.Decode(word, pc)
	x := newExecution(sim, sim.nextID, pc, inst)
	sim.nextID++
	x.Err = err
	return x
}

func (sim *Simulation) syscall(x *Execution) error {
	code := sim.Registers.General(REGISTER_V0).Value()
	return sim.syscalls.Lookup(code).Execute(&syscallContext{sim: sim, x: x})
}

// Data load used by instructions and syscalls
func (sim *Simulation) load(address uint32, size int) (uint32, error) {
	if sim.State() == STATE_RUNNING && sim.Debugger.memoryRead(address, size) {
		sim.watchHit = true
	}
	switch size {
	case 1:
		b, err := sim.Memory.GetByte(address)
		return uint32(b), err
	case 2:
		h, err := sim.Memory.GetHalfword(address)
		return uint32(h), err
	case 4:
		return sim.Memory.GetWord(address)
	}
	panicFmt("simulation: invalid load size %d", size)
	return 0, nil
}

// Data store used by instructions and syscalls. The overwritten bytes are
// recorded in the current undo delta
func (sim *Simulation) store(address uint32, size int, val uint32) error {
	if sim.State() == STATE_RUNNING && sim.Debugger.memoryWrite(address, size) {
		sim.watchHit = true
	}

	change := memoryChange{address: address, size: size}
	bigEndian := sim.Memory.IsBigEndian()
	switch size {
	case 1:
		old, err := sim.Memory.SetByte(address, byte(val))
		if err != nil {
			return err
		}
		change.old[0] = old
	case 2:
		old, err := sim.Memory.SetHalfword(address, uint16(val))
		if err != nil {
			return err
		}
		b := splitHalfword(old, bigEndian)
		copy(change.old[:], b[:])
	case 4:
		old, err := sim.Memory.SetWord(address, val)
		if err != nil {
			return err
		}
		change.old = SplitWord(old, bigEndian)
	default:
		panicFmt("simulation: invalid store size %d", size)
	}

	if sim.delta != nil {
		sim.delta.memory = append(sim.delta.memory, change)
	}
	return nil
}

// Returns true if there's nothing left to fetch: the program exited or PC
// left the program and no exception is waiting
func (sim *Simulation) outOfProgram() bool {
	if sim.exited {
		return true
	}
	return !sim.program.Contains(sim.Registers.PC.Value()) && !sim.Interrupts.HasSoftwareRequest()
}
