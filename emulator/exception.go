package emulator

import (
	"errors"
	"fmt"
)

type ExceptionCode uint32

const (
	EXCEPTION_INTERRUPT           ExceptionCode = 0x0 // External interrupt
	EXCEPTION_LOAD_ADDRESS_ERROR  ExceptionCode = 0x4 // Address error on load or fetch
	EXCEPTION_STORE_ADDRESS_ERROR ExceptionCode = 0x5 // Address error on store
	EXCEPTION_INSTRUCTION_BUS     ExceptionCode = 0x6 // Bus error on instruction fetch
	EXCEPTION_DATA_BUS            ExceptionCode = 0x7 // Bus error on load or store
	EXCEPTION_SYSCALL             ExceptionCode = 0x8 // System call (caused by the SYSCALL opcode)
	EXCEPTION_BREAK               ExceptionCode = 0x9 // Breakpoint (caused by BREAK opcode)
	EXCEPTION_ILLEGAL_INSTRUCTION ExceptionCode = 0xa // CPU encountered an unknown instruction
	EXCEPTION_COPROCESSOR_ERROR   ExceptionCode = 0xb // Unsupported coprocessor operation
	EXCEPTION_OVERFLOW            ExceptionCode = 0xc // Arithmetic overflow
	EXCEPTION_TRAP                ExceptionCode = 0xd // Trap instruction
	EXCEPTION_FLOATING_POINT      ExceptionCode = 0xf // Floating point exception
)

var exceptionNames = map[ExceptionCode]string{
	EXCEPTION_INTERRUPT:           "interrupt",
	EXCEPTION_LOAD_ADDRESS_ERROR:  "address error on load",
	EXCEPTION_STORE_ADDRESS_ERROR: "address error on store",
	EXCEPTION_INSTRUCTION_BUS:     "bus error on fetch",
	EXCEPTION_DATA_BUS:            "bus error on data access",
	EXCEPTION_SYSCALL:             "syscall",
	EXCEPTION_BREAK:               "break",
	EXCEPTION_ILLEGAL_INSTRUCTION: "reserved instruction",
	EXCEPTION_COPROCESSOR_ERROR:   "coprocessor unusable",
	EXCEPTION_OVERFLOW:            "arithmetic overflow",
	EXCEPTION_TRAP:                "trap",
	EXCEPTION_FLOATING_POINT:      "floating point exception",
}

func (code ExceptionCode) String() string {
	if name, ok := exceptionNames[code]; ok {
		return name
	}
	return fmt.Sprintf("exception 0x%x", uint32(code))
}

var (
	ErrOutOfBounds       = errors.New("address out of bounds")
	ErrUnalignedAccess   = errors.New("unaligned access")
	ErrSimulationRunning = errors.New("simulation is running")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrFinished          = errors.New("simulation finished")
)

// Returned by memories when an access can't be served. Wraps either
// ErrOutOfBounds or ErrUnalignedAccess
type AddressError struct {
	Address uint32
	Store   bool
	Err     error
}

func (e *AddressError) Error() string {
	op := "load"
	if e.Store {
		op = "store"
	}
	return fmt.Sprintf("%s at 0x%08x: %v", op, e.Address, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

func outOfBounds(address uint32, store bool) error {
	return &AddressError{Address: address, Store: store, Err: ErrOutOfBounds}
}

func unaligned(address uint32, store bool) error {
	return &AddressError{Address: address, Store: store, Err: ErrUnalignedAccess}
}

// No instruction in the set matches a fetched word. Always fatal to the run
type InstructionNotFoundError struct {
	Word    uint32
	Address uint32
}

func (e *InstructionNotFoundError) Error() string {
	return fmt.Sprintf("instruction not found at 0x%08x: 0x%08x (%032b)", e.Address, e.Word, e.Word)
}

// Raised by an instruction while executing. Fatal to the instruction, but
// the engine may turn it into an exception handled by the kernel
type RuntimeInstructionError struct {
	Code       ExceptionCode
	Address    uint32 // Address of the faulting instruction
	BadAddress uint32 // Faulting data address for address errors
	Msg        string
}

func (e *RuntimeInstructionError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%v at 0x%08x", e.Code, e.Address)
	}
	return fmt.Sprintf("%v at 0x%08x: %s", e.Code, e.Address, e.Msg)
}

// Converts a memory error raised while executing the instruction at `pc`
// into a RuntimeInstructionError. Out of bounds accesses are returned
// untouched since they are always fatal
func addressFault(err error, pc uint32) error {
	var addrErr *AddressError
	if !errors.As(err, &addrErr) || !errors.Is(err, ErrUnalignedAccess) {
		return err
	}
	code := EXCEPTION_LOAD_ADDRESS_ERROR
	if addrErr.Store {
		code = EXCEPTION_STORE_ADDRESS_ERROR
	}
	return &RuntimeInstructionError{
		Code:       code,
		Address:    pc,
		BadAddress: addrErr.Address,
		Msg:        err.Error(),
	}
}
