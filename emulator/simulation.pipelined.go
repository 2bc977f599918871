package emulator

import "fmt"

type functionalUnit struct {
	name    string
	classes uint8 // Bit n set: accepts ExecutionClass n
	latency int
	x       *Execution
}

func (unit *functionalUnit) accepts(class ExecutionClass) bool {
	return unit.classes&(1<<class) != 0
}

// Exception waiting for the pipeline to drain
type pendingException struct {
	software bool
	code     ExceptionCode
	epc      uint32
	level    int
}

// Five stage IF ID EX MEM WB pipeline without forwarding. EX is a set of
// functional units: the plain pipeline has a single unit accepting every
// class, the multi-ALU pipeline several units with their own latencies.
// Each latch holds the instruction that performs the stage's work in the
// next cycle
type pipeline struct {
	multiALU bool
	fetch    *Execution // IF
	decode   *Execution // ID
	units    []functionalUnit
	memory   *Execution // MEM
	write    *Execution // WB

	draining bool
	pending  pendingException
	stalls   uint64 // Cycles an instruction waited in ID
}

type pipelineState struct {
	fetch, decode, memory, write *Execution
	units                        []*Execution
	draining                     bool
	pending                      pendingException
	stalls                       uint64
}

func newPipeline(multiALU bool, configs []FunctionalUnitConfig) *pipeline {
	p := &pipeline{multiALU: multiALU}
	for _, config := range configs {
		var classes uint8
		for _, class := range config.Classes {
			classes |= 1 << class
		}
		for i := 0; i < config.Count; i++ {
			name := config.Name
			if config.Count > 1 {
				name = fmt.Sprintf("%s%d", config.Name, i)
			}
			p.units = append(p.units, functionalUnit{name: name, classes: classes, latency: max(config.Latency, 1)})
		}
	}
	return p
}

// Runs one clock cycle. Stages are processed from WB to IF so every
// instruction can move into the latch freed by the one ahead of it
func (p *pipeline) step(sim *Simulation) (bool, error) {
	if err := p.poll(sim); err != nil {
		return true, err
	}
	if err := p.writeBack(sim); err != nil {
		return true, err
	}
	p.accessMemory(sim)
	p.execute(sim)
	p.issue(sim)

	if p.draining && p.empty() {
		p.draining = false
		if p.pending.software {
			sim.enterException(p.pending.code, p.pending.epc, 0, 0)
		} else {
			sim.enterException(EXCEPTION_INTERRUPT, sim.Registers.PC.Value(), p.pending.level, 0)
		}
	}

	return true, p.fetchNext(sim)
}

// Starts draining the pipeline if an exception or interrupt is pending
func (p *pipeline) poll(sim *Simulation) error {
	if p.draining {
		return nil
	}
	if ex, ok := sim.Interrupts.TakeSoftwareException(); ok {
		if !sim.trapsEnabled() {
			return sim.takeSoftwareException(ex)
		}
		p.pending = pendingException{software: true, code: ex.Code, epc: ex.Address}
	} else if sim.Interrupts.IsRequestingInterrupts(sim) {
		p.pending = pendingException{code: EXCEPTION_INTERRUPT, level: sim.Interrupts.GetRequestedIPL()}
	} else {
		return nil
	}
	p.draining = true
	p.flushFront(sim, true)
	return nil
}

func (p *pipeline) writeBack(sim *Simulation) error {
	x := p.write
	if x == nil {
		return nil
	}
	p.write = nil

	if x.Err != nil {
		x.Release()
		p.flushAll(sim)
		return sim.fault(x.Address, x.Err)
	}
	x.WriteBack()
	sim.retired++
	return nil
}

// Number of misses of every cache level
func totalMisses(mem Memory) uint64 {
	var misses uint64
	for _, level := range CacheLevels(mem) {
		misses += level.stats.Misses
	}
	return misses
}

func (p *pipeline) accessMemory(sim *Simulation) {
	x := p.memory
	if x == nil {
		return
	}
	if !x.done {
		x.done = true
		if x.HasMemoryAccess() && x.Err == nil {
			misses := totalMisses(sim.Memory)
			x.AccessMemory()
			x.stall = int(totalMisses(sim.Memory)-misses) * sim.config.MissPenalty
		}
	} else if x.stall > 0 {
		x.stall--
	}

	if x.stall == 0 && p.write == nil {
		x.done = false
		p.write = x
		p.memory = nil
	}
}

func (p *pipeline) execute(sim *Simulation) {
	for i := range p.units {
		unit := &p.units[i]
		x := unit.x
		if x == nil {
			continue
		}
		if !x.done {
			x.done = true
			x.stall = unit.latency - 1
			if x.Execute() == nil && x.Jumped {
				// predicted not taken: discard the younger instructions
				p.flushFront(sim, false)
				sim.Registers.PC.SetValue(x.Target)
			}
		} else if x.stall > 0 {
			x.stall--
		}
	}
	if sim.exited {
		p.flushFront(sim, false)
	}

	// completion is in program order
	oldest := -1
	for i := range p.units {
		if x := p.units[i].x; x != nil && (oldest < 0 || x.ID < p.units[oldest].x.ID) {
			oldest = i
		}
	}
	if oldest < 0 || p.memory != nil {
		return
	}
	if x := p.units[oldest].x; x.done && x.stall == 0 {
		x.done = false
		p.memory = x
		p.units[oldest].x = nil
	}
}

// Returns true if no older instruction is in flight after ID
func (p *pipeline) backEmpty() bool {
	if p.memory != nil || p.write != nil {
		return false
	}
	for i := range p.units {
		if p.units[i].x != nil {
			return false
		}
	}
	return true
}

func (p *pipeline) empty() bool {
	return p.fetch == nil && p.decode == nil && p.backEmpty()
}

// Moves the instruction in ID to a free functional unit, if its hazards
// are resolved
func (p *pipeline) issue(sim *Simulation) {
	x := p.decode
	if x == nil {
		return
	}
	if !p.canIssue(x) {
		p.stalls++
		return
	}
	for i := range p.units {
		unit := &p.units[i]
		if unit.x == nil && unit.accepts(x.Class()) {
			x.ReadOperands()
			x.Lock()
			x.done = false
			x.unit = i
			unit.x = x
			p.decode = nil
			return
		}
	}
	p.stalls++
}

func (p *pipeline) canIssue(x *Execution) bool {
	if x.Serializing() && !p.backEmpty() {
		return false
	}
	for i := range p.units {
		if other := p.units[i].x; other != nil && other.IsControlFlow() {
			return false
		}
	}
	// nothing issues behind a serializing instruction until it retires
	for _, other := range []*Execution{p.memory, p.write} {
		if other != nil && other.Serializing() {
			return false
		}
	}
	return x.CanIssue()
}

func (p *pipeline) fetchNext(sim *Simulation) error {
	if p.fetch == nil {
		pc := sim.Registers.PC.Value()
		if p.draining || sim.exited || !sim.program.Contains(pc) || sim.shouldBreak(pc) {
			return nil
		}
		misses := totalMisses(sim.Memory)
		x := sim.fetch(pc)
		x.done = true
		x.stall = int(totalMisses(sim.Memory)-misses) * sim.config.MissPenalty
		sim.Registers.PC.SetValue(pc + 4)
		p.fetch = x
	} else if p.fetch.stall > 0 {
		p.fetch.stall--
	}

	if x := p.fetch; x.stall == 0 && p.decode == nil {
		x.done = false
		p.decode = x
		p.fetch = nil
	}
	return nil
}

// Discards IF and ID. When `restorePC` is set the program counter goes
// back to the oldest discarded instruction
func (p *pipeline) flushFront(sim *Simulation, restorePC bool) {
	oldest := p.decode
	if oldest == nil {
		oldest = p.fetch
	}
	if restorePC && oldest != nil {
		sim.Registers.PC.SetValue(oldest.Address)
	}
	for _, x := range []*Execution{p.decode, p.fetch} {
		if x != nil {
			x.Release()
		}
	}
	p.fetch, p.decode = nil, nil
}

// Discards every in-flight instruction. A pending exception is requested
// again so it's taken after the fault
func (p *pipeline) flushAll(sim *Simulation) {
	p.flushFront(sim, false)
	for i := range p.units {
		if x := p.units[i].x; x != nil {
			x.Release()
			p.units[i].x = nil
		}
	}
	for _, x := range []*Execution{p.memory, p.write} {
		if x != nil {
			x.Release()
		}
	}
	p.memory, p.write = nil, nil

	if p.draining {
		p.draining = false
		if p.pending.software {
			sim.Interrupts.AddSoftwareRequest(SoftwareException{Code: p.pending.code, Address: p.pending.epc})
		} else {
			sim.Interrupts.AddRequest(p.pending.level)
		}
	}
}

func (p *pipeline) finished(sim *Simulation) bool {
	return p.empty() && !p.draining && sim.outOfProgram()
}

// Returns the number of cycles instructions waited in ID
func (p *pipeline) Stalls() uint64 {
	return p.stalls
}

func cloneExecution(x *Execution) *Execution {
	if x == nil {
		return nil
	}
	return x.clone()
}

func (p *pipeline) snapshot() any {
	state := pipelineState{
		fetch:    cloneExecution(p.fetch),
		decode:   cloneExecution(p.decode),
		memory:   cloneExecution(p.memory),
		write:    cloneExecution(p.write),
		units:    make([]*Execution, len(p.units)),
		draining: p.draining,
		pending:  p.pending,
		stalls:   p.stalls,
	}
	for i := range p.units {
		state.units[i] = cloneExecution(p.units[i].x)
	}
	return state
}

func (p *pipeline) restore(state any) {
	s := state.(pipelineState)
	p.fetch, p.decode, p.memory, p.write = s.fetch, s.decode, s.memory, s.write
	for i := range p.units {
		p.units[i].x = s.units[i]
	}
	p.draining = s.draining
	p.pending = s.pending
	p.stalls = s.stalls
}

func (p *pipeline) reset() {
	p.fetch, p.decode, p.memory, p.write = nil, nil, nil, nil
	for i := range p.units {
		p.units[i].x = nil
	}
	p.draining = false
	p.pending = pendingException{}
	p.stalls = 0
}

func (p *pipeline) stages() []StageView {
	views := []StageView{stageView("IF", p.fetch), stageView("ID", p.decode)}
	for i := range p.units {
		name := "EX"
		if p.multiALU {
			name = "EX:" + p.units[i].name
		}
		views = append(views, stageView(name, p.units[i].x))
	}
	return append(views, stageView("MEM", p.memory), stageView("WB", p.write))
}
