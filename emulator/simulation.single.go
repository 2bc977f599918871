package emulator

// Executes a whole instruction per step
type singleCycle struct {
	last *Execution // Last executed instruction
}

// Runs the instruction at the program counter and moves the program
// counter to the next one
func (engine *singleCycle) step(sim *Simulation) (bool, error) {
	pc := sim.Registers.PC.Value()
	if sim.shouldBreak(pc) {
		return false, nil
	}
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
	engine.last = x
	if x.Err != nil {
		return true, sim.fault(pc, x.Err)
	}

	// nothing is written until every phase succeeded
	x.ReadOperands()
	if x.Execute() == nil {
		x.AccessMemory()
	}
	if x.Err != nil {
		return true, sim.fault(pc, x.Err)
	}
	x.WriteBack()
	sim.retired++

	if x.Jumped {
		sim.Registers.PC.SetValue(x.Target)
	} else {
		sim.Registers.PC.SetValue(pc + 4) // wraps around: 0xfffffffc + 4 = 0
	}
	return true, nil
}

func (engine *singleCycle) finished(sim *Simulation) bool {
	return sim.outOfProgram()
}

func (engine *singleCycle) snapshot() any {
	return engine.last
}

func (engine *singleCycle) restore(state any) {
	engine.last, _ = state.(*Execution)
}

func (engine *singleCycle) reset() {
	engine.last = nil
}

func (engine *singleCycle) stages() []StageView {
	return []StageView{stageView("CPU", engine.last)}
}
