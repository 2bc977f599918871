package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	values []uint32
	locks  []uint64
}

func (l *recordingListener) ValueChanged(reg *Register, old uint32) {
	l.values = append(l.values, old)
}

func (l *recordingListener) LockChanged(reg *Register, oldOwner uint64) {
	l.locks = append(l.locks, oldOwner)
}

func TestRegisterLocks(t *testing.T) {
	reg := NewRegister(8, 0, true, "t0")
	assert.False(t, reg.IsLocked())

	require.True(t, reg.Lock(1))
	assert.True(t, reg.Lock(1), "the owner can lock again")
	assert.False(t, reg.Lock(2))
	assert.True(t, reg.IsLockedByOther(2))
	assert.False(t, reg.IsLockedByOther(1))

	reg.Unlock(2)
	assert.Equal(t, uint64(1), reg.LockedBy())
	reg.Unlock(1)
	assert.False(t, reg.IsLocked())
	assert.True(t, reg.Lock(2))
}

func TestZeroRegister(t *testing.T) {
	regs := NewRegisterSet()
	zero := regs.General(REGISTER_ZERO)
	zero.SetValue(5)
	assert.Zero(t, zero.Value())
	assert.True(t, zero.Lock(1))
	assert.False(t, zero.IsLocked())
}

func TestRegisterListener(t *testing.T) {
	reg := NewRegister(8, 3, true, "t0")
	listener := &recordingListener{}
	reg.listener = listener

	reg.SetValue(3) // unchanged, not reported
	reg.SetValue(4)
	reg.SetValue(5)
	reg.Lock(7)
	reg.Unlock(7)
	assert.Equal(t, []uint32{3, 4}, listener.values)
	assert.Equal(t, []uint64{0, 7}, listener.locks)

	reg.Reset()
	assert.Equal(t, uint32(3), reg.Value())
	assert.Len(t, listener.values, 2)
}

func TestRegisterSetLookup(t *testing.T) {
	regs := NewRegisterSet()
	for _, name := range []string{"$t0", "t0", "$8", "8", " $T0 "} {
		reg, ok := regs.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, 8, reg.Identifier)
	}
	assert.Equal(t, STACK_POINTER, regs.General(REGISTER_SP).Value())
	assert.Equal(t, GLOBAL_POINTER, regs.General(REGISTER_GP).Value())
	assert.Equal(t, TEXT_START, regs.PC.Value())

	status, ok := regs.GetCop0("$status")
	require.True(t, ok)
	assert.Same(t, regs.Cop0(COP0_STATUS), status)
	assert.Nil(t, regs.Cop0(3))

	f4, ok := regs.GetCop1("$f4")
	require.True(t, ok)
	assert.Equal(t, 4, f4.Identifier)
	f4.SetFloatValue(1.5)
	assert.Equal(t, float32(1.5), f4.FloatValue())

	assert.True(t, regs.IsGeneral("$ra"))
	assert.False(t, regs.IsGeneral("$pc"))
	assert.True(t, regs.IsCop1("f31"))
}

func TestInterruptOrdering(t *testing.T) {
	ctrl := NewExternalInterruptController()
	for _, level := range []int{3, 7, 2} {
		require.NoError(t, ctrl.AddRequest(level))
	}
	assert.Equal(t, 7, ctrl.GetRequestedIPL())
	assert.Equal(t, 3, ctrl.GetRequestedIPL())
	assert.Equal(t, 2, ctrl.GetRequestedIPL())
	assert.Equal(t, 0, ctrl.GetRequestedIPL())
	assert.False(t, ctrl.HasRequests())
}

func TestInterruptLevels(t *testing.T) {
	ctrl := NewExternalInterruptController()
	assert.Error(t, ctrl.AddRequest(IRQ_LEVEL_SOFTWARE))
	assert.Error(t, ctrl.AddRequest(0))
	assert.Error(t, ctrl.AddRequest(64))
	assert.NoError(t, ctrl.AddRequest(IRQ_LEVEL_MAX))
}

type fixedInterruptState struct {
	enabled bool
	ipl     int
}

func (s fixedInterruptState) AreInterruptsEnabled() bool  { return s.enabled }
func (s fixedInterruptState) InterruptPriorityLevel() int { return s.ipl }

func TestInterruptMasking(t *testing.T) {
	ctrl := NewExternalInterruptController()
	require.NoError(t, ctrl.AddRequest(4))

	assert.False(t, ctrl.IsRequestingInterrupts(fixedInterruptState{enabled: false}))
	assert.True(t, ctrl.IsRequestingInterrupts(fixedInterruptState{enabled: true, ipl: 3}))
	assert.False(t, ctrl.IsRequestingInterrupts(fixedInterruptState{enabled: true, ipl: 4}))
}

func TestSoftwareException(t *testing.T) {
	ctrl := NewExternalInterruptController()
	_, ok := ctrl.TakeSoftwareException()
	assert.False(t, ok)

	ctrl.AddSoftwareRequest(SoftwareException{Code: EXCEPTION_SYSCALL, Address: 0x400010})
	assert.True(t, ctrl.HasSoftwareRequest())
	// synchronous: taken even with interrupts disabled
	ex, ok := ctrl.TakeSoftwareException()
	require.True(t, ok)
	assert.Equal(t, EXCEPTION_SYSCALL, ex.Code)
	assert.Equal(t, uint32(0x400010), ex.Address)
	assert.False(t, ctrl.HasRequests())
}

func TestInterruptRewind(t *testing.T) {
	ctrl := NewExternalInterruptController()
	require.NoError(t, ctrl.AddRequest(5))
	before := ctrl.snapshot()
	assert.Equal(t, 5, ctrl.GetRequestedIPL())
	after := ctrl.snapshot()

	require.NoError(t, ctrl.AddRequest(9)) // arrived after the step
	ctrl.rewind(before, after)
	assert.Equal(t, 9, ctrl.GetRequestedIPL())
	assert.Equal(t, 5, ctrl.GetRequestedIPL())
}

func TestCop0Exceptions(t *testing.T) {
	regs := NewRegisterSet()
	cop := NewCop0(regs)
	assert.True(t, cop.IrqEnabled())

	handler := cop.EnterException(EXCEPTION_INTERRUPT, 0x400020, 6, 0)
	assert.Equal(t, EXCEPTION_HANDLER, handler)
	assert.True(t, cop.InException())
	assert.False(t, cop.IrqEnabled())
	assert.Equal(t, 6, cop.IPL())
	assert.Equal(t, uint32(0x400020), cop.Epc.Value())

	assert.Equal(t, uint32(0x400020), cop.ReturnFromException())
	assert.False(t, cop.InException())
	assert.Equal(t, 0, cop.IPL())

	cop.EnterException(EXCEPTION_STORE_ADDRESS_ERROR, 0x400024, 0, 0x10010001)
	assert.Equal(t, uint32(0x10010001), cop.BadVAddr.Value())
	assert.Equal(t, uint32(EXCEPTION_STORE_ADDRESS_ERROR), (cop.Cause.Value()&CAUSE_EXC_MASK)>>CAUSE_EXC_SHIFT)
}
