package emulator

import (
	"fmt"
	"math/bits"
	"sync"
)

const (
	IRQ_LEVEL_SOFTWARE = 1  // Reserved for syscall and software traps
	IRQ_LEVEL_MIN      = 2  // Lowest hardware level
	IRQ_LEVEL_MAX      = 63 // Highest hardware level
)

// Implemented by simulations queried for interrupt masking
type InterruptState interface {
	AreInterruptsEnabled() bool
	InterruptPriorityLevel() int
}

// Pending software exception payload
type SoftwareException struct {
	Code    ExceptionCode
	Address uint32
	Err     error
}

// Priority set of pending interrupt levels. Requests may come from any
// goroutine; the simulation consumes them at step boundaries
type ExternalInterruptController struct {
	mu       sync.Mutex
	pending  uint64 // bit n set: level n pending
	software *SoftwareException
}

// Returns a new empty controller
func NewExternalInterruptController() *ExternalInterruptController {
	return &ExternalInterruptController{}
}

// Requests a hardware interrupt. `level` must be in [2, 63]
func (ctrl *ExternalInterruptController) AddRequest(level int) error {
	if level < IRQ_LEVEL_MIN || level > IRQ_LEVEL_MAX {
		return fmt.Errorf("irq: invalid hardware level %d", level)
	}
	ctrl.mu.Lock()
	ctrl.pending |= 1 << uint(level)
	ctrl.mu.Unlock()
	return nil
}

// Requests a software exception at level 1 and stores its payload
func (ctrl *ExternalInterruptController) AddSoftwareRequest(exception SoftwareException) {
	ctrl.mu.Lock()
	ctrl.pending |= 1 << IRQ_LEVEL_SOFTWARE
	ctrl.software = &exception
	ctrl.mu.Unlock()
}

// Returns true if a pending level is higher than the current IPL of
// `state` and interrupts are enabled
func (ctrl *ExternalInterruptController) IsRequestingInterrupts(state InterruptState) bool {
	ctrl.mu.Lock()
	pending := ctrl.pending
	ctrl.mu.Unlock()
	if pending == 0 || !state.AreInterruptsEnabled() {
		return false
	}
	return bits.Len64(pending)-1 > state.InterruptPriorityLevel()
}

// Removes and returns the highest pending level, 0 if there is none
func (ctrl *ExternalInterruptController) GetRequestedIPL() int {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.pending == 0 {
		return 0
	}
	level := bits.Len64(ctrl.pending) - 1
	ctrl.pending &^= 1 << uint(level)
	return level
}

// Removes and returns the pending software exception, consuming level 1.
// Software exceptions are synchronous, so they're taken regardless of
// the interrupt mask
func (ctrl *ExternalInterruptController) TakeSoftwareException() (SoftwareException, bool) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.software == nil {
		return SoftwareException{}, false
	}
	ex := *ctrl.software
	ctrl.software = nil
	ctrl.pending &^= 1 << IRQ_LEVEL_SOFTWARE
	return ex, true
}

// Returns true if any level is pending
func (ctrl *ExternalInterruptController) HasRequests() bool {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	return ctrl.pending != 0
}

// Clears every pending request
func (ctrl *ExternalInterruptController) Reset() {
	ctrl.mu.Lock()
	ctrl.pending = 0
	ctrl.software = nil
	ctrl.mu.Unlock()
}

// Pending requests at a given moment, recorded by undo deltas
type irqSnapshot struct {
	pending  uint64
	software *SoftwareException
}

func (ctrl *ExternalInterruptController) snapshot() irqSnapshot {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	return irqSnapshot{pending: ctrl.pending, software: ctrl.software}
}

// Reverts the effects of a step that moved the controller from `before`
// to `after`. Hardware levels consumed by the step are requested again
// while levels requested meanwhile by other goroutines are kept
func (ctrl *ExternalInterruptController) rewind(before, after irqSnapshot) {
	const softwareBit = 1 << IRQ_LEVEL_SOFTWARE
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	ctrl.pending |= (before.pending &^ after.pending) &^ softwareBit
	ctrl.software = before.software
	if before.software != nil {
		ctrl.pending |= softwareBit
	} else {
		ctrl.pending &^= softwareBit
	}
}

// Returns true if a software exception is waiting to be taken
func (ctrl *ExternalInterruptController) HasSoftwareRequest() bool {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	return ctrl.software != nil
}
