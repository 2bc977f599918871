package emulator

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	REGISTER_ZERO = 0
	REGISTER_AT   = 1
	REGISTER_V0   = 2
	REGISTER_A0   = 4
	REGISTER_GP   = 28
	REGISTER_SP   = 29
	REGISTER_RA   = 31

	TEXT_START          uint32 = 0x00400000
	GLOBAL_POINTER      uint32 = 0x10008000
	STACK_POINTER       uint32 = 0x7fffeffc
	COP0_STATUS_INITIAL uint32 = 0x00000001 // interrupts enabled, IPL 0
)

// Coprocessor 0 register numbers
const (
	COP0_BAD_VADDR = 8
	COP0_STATUS    = 12
	COP0_CAUSE     = 13
	COP0_EPC       = 14
)

// Register file: general purpose, coprocessor 0, coprocessor 1 and the
// special PC, HI and LO registers
type RegisterSet struct {
	PC *Register
	HI *Register
	LO *Register

	general [32]*Register
	cop0    map[int]*Register
	cop1    [32]*Register

	byName     map[string]*Register
	cop0ByName map[string]*Register
	cop1ByName map[string]*Register
}

// Creates the MIPS32 register file
func NewRegisterSet() *RegisterSet {
	set := &RegisterSet{
		PC:         NewRegister(-1, TEXT_START, true, "pc"),
		HI:         NewRegister(-1, 0, true, "hi"),
		LO:         NewRegister(-1, 0, true, "lo"),
		cop0:       make(map[int]*Register),
		byName:     make(map[string]*Register),
		cop0ByName: make(map[string]*Register),
		cop1ByName: make(map[string]*Register),
	}

	for i := range set.general {
		var initial uint32
		switch i {
		case REGISTER_GP:
			initial = GLOBAL_POINTER
		case REGISTER_SP:
			initial = STACK_POINTER
		}
		reg := NewRegister(i, initial, i != REGISTER_ZERO, RegisterNames[i], strconv.Itoa(i))
		set.general[i] = reg
		for _, name := range reg.Names {
			set.byName[name] = reg
		}
	}
	for _, reg := range []*Register{set.PC, set.HI, set.LO} {
		set.byName[reg.Name()] = reg
	}

	cop0 := []*Register{
		NewRegister(COP0_BAD_VADDR, 0, true, "badvaddr", "8"),
		NewRegister(COP0_STATUS, COP0_STATUS_INITIAL, true, "status", "12"),
		NewRegister(COP0_CAUSE, 0, true, "cause", "13"),
		NewRegister(COP0_EPC, 0, true, "epc", "14"),
	}
	for _, reg := range cop0 {
		set.cop0[reg.Identifier] = reg
		for _, name := range reg.Names {
			set.cop0ByName[name] = reg
		}
	}

	for i := range set.cop1 {
		reg := NewRegister(i, 0, true, fmt.Sprintf("f%d", i))
		set.cop1[i] = reg
		set.cop1ByName[reg.Name()] = reg
	}
	return set
}

func normalizeRegisterName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "$"))
}

// Returns the general purpose or special register named `name`. Accepts
// aliases ("t0"), numbers ("8") and an optional "$" prefix
func (set *RegisterSet) Get(name string) (*Register, bool) {
	reg, ok := set.byName[normalizeRegisterName(name)]
	return reg, ok
}

// Returns the coprocessor 0 register named `name`
func (set *RegisterSet) GetCop0(name string) (*Register, bool) {
	reg, ok := set.cop0ByName[normalizeRegisterName(name)]
	return reg, ok
}

// Returns the coprocessor 1 register named `name` ("f4", "$f4")
func (set *RegisterSet) GetCop1(name string) (*Register, bool) {
	reg, ok := set.cop1ByName[normalizeRegisterName(name)]
	return reg, ok
}

// Returns the general purpose register at `index`
func (set *RegisterSet) General(index uint32) *Register {
	return set.general[index&0x1f]
}

// Returns the coprocessor 0 register `index`, nil if it's not implemented
func (set *RegisterSet) Cop0(index uint32) *Register {
	return set.cop0[int(index)]
}

// Returns the coprocessor 1 register at `index`
func (set *RegisterSet) Cop1(index uint32) *Register {
	return set.cop1[index&0x1f]
}

// Returns true if `name` is a general purpose register name
func (set *RegisterSet) IsGeneral(name string) bool {
	reg, ok := set.Get(name)
	return ok && reg.Identifier >= 0
}

// Returns true if `name` is a coprocessor 1 register name
func (set *RegisterSet) IsCop1(name string) bool {
	_, ok := set.GetCop1(name)
	return ok
}

// Calls `fn` for every register in the file
func (set *RegisterSet) ForEach(fn func(reg *Register)) {
	for _, reg := range set.general {
		fn(reg)
	}
	fn(set.PC)
	fn(set.HI)
	fn(set.LO)
	for _, id := range []int{COP0_BAD_VADDR, COP0_STATUS, COP0_CAUSE, COP0_EPC} {
		fn(set.cop0[id])
	}
	for _, reg := range set.cop1 {
		fn(reg)
	}
}

// Sets the listener notified on every register change
func (set *RegisterSet) SetListener(listener RegisterListener) {
	set.ForEach(func(reg *Register) {
		reg.listener = listener
	})
}

// Resets every register to its initial value, releasing all locks
func (set *RegisterSet) Reset() {
	set.ForEach(func(reg *Register) {
		reg.Reset()
	})
}
