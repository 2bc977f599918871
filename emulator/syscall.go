package emulator

import (
	"fmt"
	"sync"
)

// View of the simulation given to syscall handlers. Memory accesses are
// recorded in the undo history like any other instruction access
type SyscallContext interface {
	Registers() *RegisterSet
	LoadByte(address uint32) (byte, error)
	StoreByte(address uint32, val byte) error
	LoadWord(address uint32) (uint32, error)
	StoreWord(address uint32, val uint32) error
	Address() uint32 // Address of the syscall instruction
	Exit(code int)
	TrapsEnabled() bool
	Interrupts() *ExternalInterruptController
}

type SyscallExecution interface {
	Execute(ctx SyscallContext) error
}

// Adapts a function to SyscallExecution
type SyscallFunc func(ctx SyscallContext) error

func (fn SyscallFunc) Execute(ctx SyscallContext) error {
	return fn(ctx)
}

// Unhandled syscalls raise a software exception when traps are enabled
// and stop the simulation otherwise
var UnhandledSyscall SyscallExecution = SyscallFunc(func(ctx SyscallContext) error {
	code := ctx.Registers().General(REGISTER_V0).Value()
	if !ctx.TrapsEnabled() {
		return fmt.Errorf("unhandled syscall %d at 0x%08x", code, ctx.Address())
	}
	ctx.Interrupts().AddSoftwareRequest(SoftwareException{
		Code:    EXCEPTION_SYSCALL,
		Address: ctx.Address(),
	})
	return nil
})

// Syscall handlers keyed by the value of $v0. Populated by the caller
type SyscallTable struct {
	mu       sync.RWMutex
	handlers map[uint32]SyscallExecution
	fallback SyscallExecution
}

func NewSyscallTable() *SyscallTable {
	return &SyscallTable{
		handlers: make(map[uint32]SyscallExecution),
		fallback: UnhandledSyscall,
	}
}

func (table *SyscallTable) Bind(code uint32, exec SyscallExecution) {
	table.mu.Lock()
	table.handlers[code] = exec
	table.mu.Unlock()
}

func (table *SyscallTable) Unbind(code uint32) {
	table.mu.Lock()
	delete(table.handlers, code)
	table.mu.Unlock()
}

// Replaces the handler used for unbound codes
func (table *SyscallTable) SetFallback(exec SyscallExecution) {
	table.mu.Lock()
	table.fallback = exec
	table.mu.Unlock()
}

// Returns the handler bound to `code`, or the fallback
func (table *SyscallTable) Lookup(code uint32) SyscallExecution {
	table.mu.RLock()
	defer table.mu.RUnlock()
	if exec, ok := table.handlers[code]; ok {
		return exec
	}
	return table.fallback
}

func (table *SyscallTable) IsBound(code uint32) bool {
	table.mu.RLock()
	defer table.mu.RUnlock()
	_, ok := table.handlers[code]
	return ok
}

// Instruction set and syscalls consumed by a simulation
type Registry struct {
	Instructions *InstructionSet
	Syscalls     *SyscallTable
}

// Returns the MIPS32 instruction set with an empty syscall table
func DefaultRegistry() Registry {
	return Registry{
		Instructions: NewMIPS32InstructionSet(),
		Syscalls:     NewSyscallTable(),
	}
}

type syscallContext struct {
	sim *Simulation
	x   *Execution
}

func (ctx *syscallContext) Registers() *RegisterSet { return ctx.sim.Registers }
func (ctx *syscallContext) Address() uint32         { return ctx.x.Address }
func (ctx *syscallContext) TrapsEnabled() bool      { return ctx.sim.trapsEnabled() }

func (ctx *syscallContext) Interrupts() *ExternalInterruptController {
	return ctx.sim.Interrupts
}

func (ctx *syscallContext) Exit(code int) {
	ctx.sim.exited = true
	ctx.sim.exitCode = code
}

func (ctx *syscallContext) LoadByte(address uint32) (byte, error) {
	v, err := ctx.sim.load(address, 1)
	return byte(v), err
}

func (ctx *syscallContext) StoreByte(address uint32, val byte) error {
	return ctx.sim.store(address, 1, uint32(val))
}

func (ctx *syscallContext) LoadWord(address uint32) (uint32, error) {
	return ctx.sim.load(address, 4)
}

func (ctx *syscallContext) StoreWord(address uint32, val uint32) error {
	return ctx.sim.store(address, 4, val)
}
