package emulator

const (
	STATUS_IE         uint32 = 1 << 0 // Interrupt enable
	STATUS_EXL        uint32 = 1 << 1 // Exception level
	STATUS_IPL_SHIFT         = 10
	STATUS_IPL_MASK   uint32 = 0x3f << STATUS_IPL_SHIFT
	CAUSE_EXC_SHIFT          = 2
	CAUSE_EXC_MASK    uint32 = 0x1f << CAUSE_EXC_SHIFT
	CAUSE_RIPL_SHIFT         = 10
	CAUSE_RIPL_MASK   uint32 = 0x3f << CAUSE_RIPL_SHIFT
	EXCEPTION_HANDLER uint32 = 0x80000180
)

// Coprocessor 0: System Control. A view over the cop0 registers of a
// RegisterSet
type Cop0 struct {
	SR       *Register // Register 12: status register
	Cause    *Register // Register 13: cause register
	Epc      *Register // Register 14: exception PC
	BadVAddr *Register // Register 8: bad virtual address
}

// Creates a new Cop0 view
func NewCop0(regs *RegisterSet) *Cop0 {
	return &Cop0{
		SR:       regs.Cop0(COP0_STATUS),
		Cause:    regs.Cop0(COP0_CAUSE),
		Epc:      regs.Cop0(COP0_EPC),
		BadVAddr: regs.Cop0(COP0_BAD_VADDR),
	}
}

// Returns true if interrupts are globally enabled: IE set and not already
// handling an exception
func (cop *Cop0) IrqEnabled() bool {
	sr := cop.SR.Value()
	return sr&STATUS_IE != 0 && sr&STATUS_EXL == 0
}

// Returns the current interrupt priority level
func (cop *Cop0) IPL() int {
	return int((cop.SR.Value() & STATUS_IPL_MASK) >> STATUS_IPL_SHIFT)
}

// Returns true if the CPU is handling an exception
func (cop *Cop0) InException() bool {
	return cop.SR.Value()&STATUS_EXL != 0
}

// Updates the status and cause registers to enter the exception `cause`
// raised at `pc`. `level` is the interrupt level being served (0 for
// synchronous exceptions). Returns the address of the exception handler
func (cop *Cop0) EnterException(cause ExceptionCode, pc uint32, level int, badAddress uint32) uint32 {
	cop.Epc.SetValue(pc)

	c := cop.Cause.Value()
	c &^= CAUSE_EXC_MASK | CAUSE_RIPL_MASK
	c |= (uint32(cause) << CAUSE_EXC_SHIFT) & CAUSE_EXC_MASK
	c |= (uint32(level) << CAUSE_RIPL_SHIFT) & CAUSE_RIPL_MASK
	cop.Cause.SetValue(c)

	sr := cop.SR.Value() | STATUS_EXL
	if level > 0 {
		// raise the IPL so lower priority requests stay pending
		sr = (sr &^ STATUS_IPL_MASK) | (uint32(level)<<STATUS_IPL_SHIFT)&STATUS_IPL_MASK
	}
	cop.SR.SetValue(sr)

	if cause == EXCEPTION_LOAD_ADDRESS_ERROR || cause == EXCEPTION_STORE_ADDRESS_ERROR {
		cop.BadVAddr.SetValue(badAddress)
	}
	return EXCEPTION_HANDLER
}

// Leaves exception mode and drops the IPL raised by EnterException.
// Returns the address to resume at
func (cop *Cop0) ReturnFromException() uint32 {
	cop.SR.SetValue(cop.SR.Value() &^ (STATUS_EXL | STATUS_IPL_MASK))
	return cop.Epc.Value()
}
