package emulator

import (
	"fmt"
	"strings"
)

// Contents of a stage, as shown to observers
type StageView struct {
	Name    string
	Busy    bool
	Address uint32
	Text    string
	Stall   int
}

func stageView(name string, x *Execution) StageView {
	if x == nil {
		return StageView{Name: name}
	}
	return StageView{
		Name:    name,
		Busy:    true,
		Address: x.Address,
		Text:    x.Instruction.Disassemble(x.Address),
		Stall:   x.stall,
	}
}

func (view StageView) String() string {
	if !view.Busy {
		return fmt.Sprintf("%-10s -", view.Name)
	}
	s := fmt.Sprintf("%-10s 0x%08x %s", view.Name, view.Address, view.Text)
	if view.Stall > 0 {
		s += fmt.Sprintf(" (stall %d)", view.Stall)
	}
	return s
}

// Returns the cycles instructions waited in the decode stage of a
// pipelined architecture
func (sim *Simulation) Stalls() uint64 {
	if p, ok := sim.engine.(*pipeline); ok {
		return p.Stalls()
	}
	return 0
}

// Returns a table with every general purpose register, PC, HI, LO and the
// coprocessor 0 registers. Locked registers are marked with '*'
func FormatRegisters(regs *RegisterSet) string {
	var sb strings.Builder
	cell := func(name string, reg *Register) string {
		mark := " "
		if reg.IsLocked() {
			mark = "*"
		}
		return fmt.Sprintf("%-5s%s0x%08x", name, mark, reg.Value())
	}

	for i := uint32(0); i < 32; i += 4 {
		cols := make([]string, 4)
		for j := uint32(0); j < 4; j++ {
			cols[j] = cell("$"+GetRegisterName(i+j), regs.General(i+j))
		}
		sb.WriteString(strings.Join(cols, "  "))
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%s  %s  %s\n", cell("pc", regs.PC), cell("hi", regs.HI), cell("lo", regs.LO))
	fmt.Fprintf(&sb, "%s  %s  %s  %s\n",
		cell("sr", regs.Cop0(COP0_STATUS)),
		cell("cause", regs.Cop0(COP0_CAUSE)),
		cell("epc", regs.Cop0(COP0_EPC)),
		cell("bad", regs.Cop0(COP0_BAD_VADDR)))
	return sb.String()
}

// Returns the execution counters and the statistics of every cache level
func FormatStats(sim *Simulation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v: %v, %d cycles, %d instructions retired",
		sim.Architecture(), sim.State(), sim.Cycles(), sim.Retired())
	if sim.Retired() > 0 {
		fmt.Fprintf(&sb, ", CPI %.2f", float64(sim.Cycles())/float64(sim.Retired()))
	}
	if stalls := sim.Stalls(); stalls > 0 {
		fmt.Fprintf(&sb, ", %d stalls", stalls)
	}
	sb.WriteByte('\n')
	for i, level := range CacheLevels(sim.Memory) {
		fmt.Fprintf(&sb, "L%d %v\n   %v\n", i+1, level, level.Stats())
	}
	return sb.String()
}

// Returns one line per stage of the architecture
func FormatPipeline(sim *Simulation) string {
	var sb strings.Builder
	for _, view := range sim.Stages() {
		sb.WriteString(view.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
