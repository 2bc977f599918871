package emulator

import "math"

// Receives every change applied to a register. Used by the simulation to
// record undo deltas
type RegisterListener interface {
	ValueChanged(reg *Register, old uint32)
	LockChanged(reg *Register, oldOwner uint64)
}

// A 32 bit register. Locks are owned by in-flight instructions, identified
// by a non zero id
type Register struct {
	Identifier int      // Numeric identifier inside its bank
	Names      []string // Aliases, the first one is the display name
	Modifiable bool     // Writes to unmodifiable registers are ignored

	value    uint32
	initial  uint32
	lockedBy uint64
	listener RegisterListener
}

// Creates a new register with the given identifier, initial value and names
func NewRegister(id int, initial uint32, modifiable bool, names ...string) *Register {
	return &Register{
		Identifier: id,
		Names:      names,
		Modifiable: modifiable,
		value:      initial,
		initial:    initial,
	}
}

// Returns the display name of the register
func (reg *Register) Name() string {
	if len(reg.Names) == 0 {
		return ""
	}
	return reg.Names[0]
}

func (reg *Register) Value() uint32 {
	return reg.value
}

// Returns the value reinterpreted as an IEEE-754 single
func (reg *Register) FloatValue() float32 {
	return math.Float32frombits(reg.value)
}

// Sets the value of the register. Does nothing if the register is not
// modifiable
func (reg *Register) SetValue(val uint32) {
	if !reg.Modifiable || reg.value == val {
		return
	}
	old := reg.value
	reg.value = val
	if reg.listener != nil {
		reg.listener.ValueChanged(reg, old)
	}
}

func (reg *Register) SetFloatValue(val float32) {
	reg.SetValue(math.Float32bits(val))
}

// Returns the id of the instruction holding the lock, 0 if unlocked
func (reg *Register) LockedBy() uint64 {
	return reg.lockedBy
}

func (reg *Register) IsLocked() bool {
	return reg.lockedBy != 0
}

// Returns true if the register is locked by an instruction other than `owner`
func (reg *Register) IsLockedByOther(owner uint64) bool {
	return reg.lockedBy != 0 && reg.lockedBy != owner
}

// Locks the register for `owner`. Returns false if another instruction
// already holds it. Unmodifiable registers are never locked
func (reg *Register) Lock(owner uint64) bool {
	if !reg.Modifiable {
		return true
	}
	if reg.IsLockedByOther(owner) {
		return false
	}
	reg.setLock(owner)
	return true
}

// Releases the lock if `owner` holds it
func (reg *Register) Unlock(owner uint64) {
	if reg.lockedBy != owner || owner == 0 {
		return
	}
	reg.setLock(0)
}

func (reg *Register) setLock(owner uint64) {
	if reg.lockedBy == owner {
		return
	}
	old := reg.lockedBy
	reg.lockedBy = owner
	if reg.listener != nil {
		reg.listener.LockChanged(reg, old)
	}
}

// Undo helpers. They bypass the listener
func (reg *Register) restoreValue(val uint32) {
	reg.value = val
}

func (reg *Register) restoreLock(owner uint64) {
	reg.lockedBy = owner
}

// Sets the register back to its initial value and releases its lock
func (reg *Register) Reset() {
	reg.value = reg.initial
	reg.lockedBy = 0
}
