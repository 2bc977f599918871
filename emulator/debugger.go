package emulator

import (
	"slices"
	"sync"
)

// Breakpoints and memory watchpoints. Safe to modify from any goroutine
// while the simulation runs
type Debugger struct {
	mu               sync.RWMutex
	breakpoints      map[uint32]struct{} // All breakpoint addresses
	readWatchpoints  map[uint32]struct{} // All read watchpoints
	writeWatchpoints map[uint32]struct{} // All write watchpoints
}

func NewDebugger() *Debugger {
	return &Debugger{
		breakpoints:      make(map[uint32]struct{}),
		readWatchpoints:  make(map[uint32]struct{}),
		writeWatchpoints: make(map[uint32]struct{}),
	}
}

func (debugger *Debugger) add(set map[uint32]struct{}, addr uint32) {
	debugger.mu.Lock()
	set[addr] = struct{}{}
	debugger.mu.Unlock()
}

func (debugger *Debugger) remove(set map[uint32]struct{}, addr uint32) {
	debugger.mu.Lock()
	delete(set, addr)
	debugger.mu.Unlock()
}

func (debugger *Debugger) has(set map[uint32]struct{}, addr uint32) bool {
	debugger.mu.RLock()
	_, ok := set[addr]
	debugger.mu.RUnlock()
	return ok
}

func (debugger *Debugger) sorted(set map[uint32]struct{}) []uint32 {
	debugger.mu.RLock()
	out := make([]uint32, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	debugger.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Adds a breakpoint when the instruction at `addr` is about to be fetched
func (debugger *Debugger) AddBreakpoint(addr uint32) {
	debugger.add(debugger.breakpoints, addr)
}

// Deletes a breakpoint at `addr`. Does nothing if it doesn't exist
func (debugger *Debugger) RemoveBreakpoint(addr uint32) {
	debugger.remove(debugger.breakpoints, addr)
}

func (debugger *Debugger) HasBreakpoint(addr uint32) bool {
	return debugger.has(debugger.breakpoints, addr)
}

// Returns every breakpoint in ascending order
func (debugger *Debugger) Breakpoints() []uint32 {
	return debugger.sorted(debugger.breakpoints)
}

// Adds a memory read watchpoint for `addr`
func (debugger *Debugger) AddReadWatchpoint(addr uint32) {
	debugger.add(debugger.readWatchpoints, addr)
}

// Adds a memory write watchpoint for `addr`
func (debugger *Debugger) AddWriteWatchpoint(addr uint32) {
	debugger.add(debugger.writeWatchpoints, addr)
}

// Deletes a memory read watchpoint at `addr`. Does nothing if it doesn't exist
func (debugger *Debugger) RemoveReadWatchpoint(addr uint32) {
	debugger.remove(debugger.readWatchpoints, addr)
}

// Deletes a memory write watchpoint at `addr`. Does nothing if it doesn't exist
func (debugger *Debugger) RemoveWriteWatchpoint(addr uint32) {
	debugger.remove(debugger.writeWatchpoints, addr)
}

func (debugger *Debugger) ReadWatchpoints() []uint32 {
	return debugger.sorted(debugger.readWatchpoints)
}

func (debugger *Debugger) WriteWatchpoints() []uint32 {
	return debugger.sorted(debugger.writeWatchpoints)
}

// Called by the simulation when it's about to read `size` bytes at `addr`
func (debugger *Debugger) memoryRead(addr uint32, size int) bool {
	return debugger.watched(debugger.readWatchpoints, addr, size)
}

// Called by the simulation when it's about to write `size` bytes at `addr`
func (debugger *Debugger) memoryWrite(addr uint32, size int) bool {
	return debugger.watched(debugger.writeWatchpoints, addr, size)
}

func (debugger *Debugger) watched(set map[uint32]struct{}, addr uint32, size int) bool {
	debugger.mu.RLock()
	defer debugger.mu.RUnlock()
	if len(set) == 0 {
		return false
	}
	for i := 0; i < size; i++ {
		if _, ok := set[addr+uint32(i)]; ok {
			return true
		}
	}
	return false
}

// Removes every breakpoint and watchpoint
func (debugger *Debugger) Clear() {
	debugger.mu.Lock()
	clear(debugger.breakpoints)
	clear(debugger.readWatchpoints)
	clear(debugger.writeWatchpoints)
	debugger.mu.Unlock()
}
