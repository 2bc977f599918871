package emulator

import (
	"errors"
	"fmt"
)

// Kind of functional unit able to run an instruction
type ExecutionClass uint8

const (
	CLASS_ALU    ExecutionClass = iota // Integer arithmetic and logic
	CLASS_MULDIV ExecutionClass = iota // Integer multiplication and division
	CLASS_FPU    ExecutionClass = iota // Coprocessor 1 arithmetic
	CLASS_MEMORY ExecutionClass = iota // Loads and stores
	CLASS_BRANCH ExecutionClass = iota // Branches and jumps
	CLASS_SYSTEM ExecutionClass = iota // Syscalls, traps and coprocessor 0
)

func (class ExecutionClass) String() string {
	switch class {
	case CLASS_ALU:
		return "alu"
	case CLASS_MULDIV:
		return "muldiv"
	case CLASS_FPU:
		return "fpu"
	case CLASS_MEMORY:
		return "memory"
	case CLASS_BRANCH:
		return "branch"
	case CLASS_SYSTEM:
		return "system"
	}
	return fmt.Sprintf("ExecutionClass(%d)", uint8(class))
}

// Behaviour of a basic instruction, split in the phases used by the
// execution engines. Sources are read at decode, Execute computes the
// results, Memory performs the data access and the results are written to
// Dests at write back
type Semantics struct {
	Class       ExecutionClass
	Serializing bool // Waits until every older instruction has retired
	Sources     func(x *Execution) []*Register
	Dests       func(x *Execution) []*Register
	Execute     func(x *Execution) error
	Memory      func(x *Execution) error
}

// In-flight instance of an instruction
type Execution struct {
	ID          uint64 // Lock owner, unique per simulation
	Address     uint32
	Instruction AssembledInstruction

	Sources  []*Register
	Dests    []*Register
	Operands []uint32
	Results  []uint32

	MemAddress uint32
	Jumped     bool // Set when the instruction changes the control flow
	Target     uint32
	Err        error // Deferred fault, raised when the instruction retires

	sim      *Simulation
	executed bool
	accessed bool
	done     bool // Work of the current stage is finished
	stall    int  // Remaining cycles before leaving the current stage
	unit     int
}

func newExecution(sim *Simulation, id uint64, address uint32, inst AssembledInstruction) *Execution {
	x := &Execution{
		ID:          id,
		Address:     address,
		Instruction: inst,
		sim:         sim,
		unit:        -1,
	}
	if sem := x.semantics(); sem != nil {
		if sem.Sources != nil {
			x.Sources = sem.Sources(x)
		}
		if sem.Dests != nil {
			x.Dests = sem.Dests(x)
		}
	}
	x.Operands = make([]uint32, len(x.Sources))
	x.Results = make([]uint32, len(x.Dests))
	return x
}

func (x *Execution) semantics() *Semantics {
	if x.Instruction.Origin == nil {
		return nil
	}
	return &x.Instruction.Origin.Semantics
}

func (x *Execution) Word() InstructionWord {
	return x.Instruction.Word
}

func (x *Execution) Registers() *RegisterSet {
	return x.sim.Registers
}

func (x *Execution) Class() ExecutionClass {
	if sem := x.semantics(); sem != nil {
		return sem.Class
	}
	return CLASS_ALU
}

func (x *Execution) Serializing() bool {
	sem := x.semantics()
	return sem != nil && sem.Serializing
}

func (x *Execution) IsControlFlow() bool {
	return x.Class() == CLASS_BRANCH || x.Serializing()
}

func (x *Execution) HasMemoryAccess() bool {
	sem := x.semantics()
	return sem != nil && sem.Memory != nil
}

func (x *Execution) Operand(i int) uint32 {
	return x.Operands[i]
}

// Redirects the control flow to `target`
func (x *Execution) Jump(target uint32) {
	x.Jumped = true
	x.Target = target
}

// Returns true if every source and destination is free or owned by this
// instruction
func (x *Execution) CanIssue() bool {
	for _, reg := range x.Sources {
		if reg.IsLockedByOther(x.ID) {
			return false
		}
	}
	for _, reg := range x.Dests {
		if reg.IsLockedByOther(x.ID) {
			return false
		}
	}
	return true
}

// Locks every destination register. Must be called after CanIssue
func (x *Execution) Lock() {
	for _, reg := range x.Dests {
		reg.Lock(x.ID)
	}
}

// Releases every lock held by the instruction
func (x *Execution) Release() {
	for _, reg := range x.Dests {
		reg.Unlock(x.ID)
	}
}

func (x *Execution) ReadOperands() {
	for i, reg := range x.Sources {
		x.Operands[i] = reg.Value()
	}
}

// Runs the execute phase. Errors are stored in Err and returned
func (x *Execution) Execute() error {
	x.executed = true
	if x.Err != nil {
		return x.Err
	}
	sem := x.semantics()
	if sem == nil {
		x.Err = &InstructionNotFoundError{Word: uint32(x.Instruction.Word), Address: x.Address}
		return x.Err
	}
	if sem.Execute != nil {
		if err := sem.Execute(x); err != nil {
			x.Err = x.wrap(err)
		}
	}
	return x.Err
}

// Runs the memory phase, if the instruction has one
func (x *Execution) AccessMemory() error {
	x.accessed = true
	if x.Err != nil {
		return x.Err
	}
	if sem := x.semantics(); sem != nil && sem.Memory != nil {
		if err := sem.Memory(x); err != nil {
			x.Err = x.wrap(err)
		}
	}
	return x.Err
}

// Writes the results and releases the locks
func (x *Execution) WriteBack() {
	for i, reg := range x.Dests {
		reg.SetValue(x.Results[i])
	}
	x.Release()
}

func (x *Execution) wrap(err error) error {
	switch {
	case errors.Is(err, errOverflow):
		return &RuntimeInstructionError{Code: EXCEPTION_OVERFLOW, Address: x.Address}
	case errors.Is(err, errDivisionByZero):
		return &RuntimeInstructionError{Code: EXCEPTION_TRAP, Address: x.Address, Msg: err.Error()}
	}
	return addressFault(err, x.Address)
}

// Reads `size` bytes at `address` through the simulation memory
func (x *Execution) Load(address uint32, size int) (uint32, error) {
	return x.sim.load(address, size)
}

// Writes the lower `size` bytes of `val` at `address`
func (x *Execution) Store(address uint32, size int, val uint32) error {
	return x.sim.store(address, size, val)
}

func (x *Execution) String() string {
	return fmt.Sprintf("#%d 0x%08x %s", x.ID, x.Address, x.Instruction.Disassemble(x.Address))
}

// Returns a detached copy, used by undo snapshots
func (x *Execution) clone() *Execution {
	c := *x
	c.Operands = append([]uint32(nil), x.Operands...)
	c.Results = append([]uint32(nil), x.Results...)
	return &c
}
