package emulator

import "fmt"

type MicroStep uint8

const (
	MICRO_FETCH     MicroStep = iota
	MICRO_DECODE    MicroStep = iota
	MICRO_EXECUTE   MicroStep = iota
	MICRO_MEMORY    MicroStep = iota
	MICRO_WRITEBACK MicroStep = iota
)

func (step MicroStep) String() string {
	switch step {
	case MICRO_FETCH:
		return "IF"
	case MICRO_DECODE:
		return "ID"
	case MICRO_EXECUTE:
		return "EX"
	case MICRO_MEMORY:
		return "MEM"
	case MICRO_WRITEBACK:
		return "WB"
	}
	return fmt.Sprintf("MicroStep(%d)", uint8(step))
}

// Executes one micro-step per step. Memory is only accessed by loads and
// stores and write back is skipped by instructions without destinations
type multiCycle struct {
	phase   MicroStep // Next micro-step to run
	current *Execution
}

type multiCycleState struct {
	phase   MicroStep
	current *Execution
}

func (engine *multiCycle) step(sim *Simulation) (bool, error) {
	switch engine.phase {
	case MICRO_FETCH:
		pc := sim.Registers.PC.Value()
		if sim.shouldBreak(pc) {
			return false, nil
		}
		// interrupts are only sampled between instructions
		taken, err := sim.pollInterrupts(pc)
		if err != nil {
			return true, err
		} else if taken {
			pc = sim.Registers.PC.Value()
		}
		if sim.outOfProgram() {
			return taken, nil
		}

		x := sim.fetch(pc)
		if x.Err != nil {
			return true, sim.fault(pc, x.Err)
		}
		sim.Registers.PC.SetValue(pc + 4)
		engine.current = x
		engine.phase = MICRO_DECODE

	case MICRO_DECODE:
		engine.current.ReadOperands()
		engine.phase = MICRO_EXECUTE

	case MICRO_EXECUTE:
		x := engine.current
		if x.Execute() != nil {
			return true, engine.abort(sim)
		}
		if x.Jumped {
			sim.Registers.PC.SetValue(x.Target)
		}
		if x.HasMemoryAccess() {
			engine.phase = MICRO_MEMORY
		} else {
			engine.afterMemory(sim)
		}

	case MICRO_MEMORY:
		if engine.current.AccessMemory() != nil {
			return true, engine.abort(sim)
		}
		engine.afterMemory(sim)

	case MICRO_WRITEBACK:
		engine.current.WriteBack()
		engine.retire(sim)
	}
	return true, nil
}

func (engine *multiCycle) afterMemory(sim *Simulation) {
	if len(engine.current.Dests) > 0 {
		engine.phase = MICRO_WRITEBACK
		return
	}
	engine.retire(sim)
}

func (engine *multiCycle) retire(sim *Simulation) {
	sim.retired++
	engine.current = nil
	engine.phase = MICRO_FETCH
}

// Drops the failing instruction and hands the error to the simulation
func (engine *multiCycle) abort(sim *Simulation) error {
	x := engine.current
	engine.current = nil
	engine.phase = MICRO_FETCH
	return sim.fault(x.Address, x.Err)
}

func (engine *multiCycle) finished(sim *Simulation) bool {
	return engine.phase == MICRO_FETCH && sim.outOfProgram()
}

func (engine *multiCycle) snapshot() any {
	state := multiCycleState{phase: engine.phase}
	if engine.current != nil {
		state.current = engine.current.clone()
	}
	return state
}

func (engine *multiCycle) restore(state any) {
	s := state.(multiCycleState)
	engine.phase = s.phase
	engine.current = s.current
}

func (engine *multiCycle) reset() {
	engine.phase = MICRO_FETCH
	engine.current = nil
}

func (engine *multiCycle) stages() []StageView {
	view := stageView(engine.phase.String(), engine.current)
	return []StageView{view}
}
