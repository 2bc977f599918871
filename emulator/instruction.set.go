package emulator

import (
	"fmt"
	"strings"
	"unicode"
)

// Registry of basic and pseudo instructions, used both to decode fetched
// words and to assemble source lines
type InstructionSet struct {
	Name string

	basics     []*BasicInstruction
	pseudos    []*PseudoInstruction
	byOpcode   map[uint32][]*BasicInstruction
	byMnemonic map[string][]Instruction
}

func NewInstructionSet(name string) *InstructionSet {
	return &InstructionSet{
		Name:       name,
		byOpcode:   make(map[uint32][]*BasicInstruction),
		byMnemonic: make(map[string][]Instruction),
	}
}

// Registers a basic instruction. Panics if its encoding collides with an
// already registered instruction
func (set *InstructionSet) AddBasic(inst *BasicInstruction) {
	for _, other := range set.byOpcode[inst.Opcode] {
		if other.Mask == inst.Mask && other.Value == inst.Value {
			panicFmt("instruction %s collides with %s", inst.mnemonic, other.mnemonic)
		}
	}
	set.basics = append(set.basics, inst)
	set.byOpcode[inst.Opcode] = append(set.byOpcode[inst.Opcode], inst)
	set.byMnemonic[inst.mnemonic] = append(set.byMnemonic[inst.mnemonic], inst)
}

func (set *InstructionSet) AddPseudo(inst *PseudoInstruction) {
	set.pseudos = append(set.pseudos, inst)
	set.byMnemonic[inst.mnemonic] = append(set.byMnemonic[inst.mnemonic], inst)
}

func (set *InstructionSet) Basics() []*BasicInstruction {
	return set.basics
}

func (set *InstructionSet) Pseudos() []*PseudoInstruction {
	return set.pseudos
}

// Returns the basic instruction with the exact mnemonic and parameter
// types, nil if there's none
func (set *InstructionSet) basic(mnemonic string, types ...ParameterType) *BasicInstruction {
outer:
	for _, inst := range set.byMnemonic[mnemonic] {
		basic, ok := inst.(*BasicInstruction)
		if !ok || len(basic.parameters) != len(types) {
			continue
		}
		for i, t := range types {
			if basic.parameters[i] != t {
				continue outer
			}
		}
		return basic
	}
	return nil
}

// Decodes `word`, fetched from `address`
func (set *InstructionSet) Decode(word uint32, address uint32) (AssembledInstruction, error) {
	iw := InstructionWord(word)
	for _, inst := range set.byOpcode[iw.Function()] {
		if inst.Matches(iw) {
			return AssembledInstruction{Word: iw, Origin: inst}, nil
		}
	}
	return AssembledInstruction{Word: iw}, &InstructionNotFoundError{Word: word, Address: address}
}

// Returns the first instruction named `mnemonic` whose parameter types
// accept every operand. Basic instructions are preferred over pseudo
// instructions
func (set *InstructionSet) Find(mnemonic string, operands []string, regs *RegisterSet) (Instruction, error) {
	candidates, ok := set.byMnemonic[strings.ToLower(mnemonic)]
	if !ok {
		return nil, fmt.Errorf("unknown instruction %q", mnemonic)
	}

	ordered := make([]Instruction, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := c.(*BasicInstruction); ok {
			ordered = append(ordered, c)
		}
	}
	for _, c := range candidates {
		if _, ok := c.(*PseudoInstruction); ok {
			ordered = append(ordered, c)
		}
	}

outer:
	for _, inst := range ordered {
		params := inst.Parameters()
		if len(params) != len(operands) {
			continue
		}
		for i, t := range params {
			if !t.Match(operands[i], regs) {
				continue outer
			}
		}
		return inst, nil
	}
	return nil, fmt.Errorf("no variant of %q accepts operands %v", mnemonic, operands)
}

// Returns the number of words produced by `inst`
func instructionSize(inst Instruction) int {
	if pseudo, ok := inst.(*PseudoInstruction); ok {
		return pseudo.Size()
	}
	return 1
}

// Splits an assembly line into its label, mnemonic and operands. Comments
// start with '#'
func splitLine(line string) (label, mnemonic string, operands []string) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ':'); i >= 0 && labelPattern.MatchString(strings.TrimSpace(line[:i])) {
		label = strings.TrimSpace(line[:i])
		line = strings.TrimSpace(line[i+1:])
	}
	if line == "" {
		return label, "", nil
	}

	rest := ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		line, rest = line[:i], strings.TrimSpace(line[i:])
	}
	mnemonic = strings.ToLower(line)
	if rest != "" {
		for _, op := range strings.Split(rest, ",") {
			operands = append(operands, strings.TrimSpace(op))
		}
	}
	return label, mnemonic, operands
}

// Assembles a single instruction line located at `address`. Labels used by
// the line are resolved with `labels`. Pseudo instructions produce several
// words
func (set *InstructionSet) AssembleLine(line string, address uint32, regs *RegisterSet, labels map[string]uint32) ([]AssembledInstruction, error) {
	_, mnemonic, operands := splitLine(line)
	if mnemonic == "" {
		return nil, nil
	}

	inst, err := set.Find(mnemonic, operands, regs)
	if err != nil {
		return nil, err
	}

	values := make([]ParameterValue, len(operands))
	for i, t := range inst.Parameters() {
		if values[i], err = t.Parse(operands[i], regs, labels); err != nil {
			return nil, fmt.Errorf("%s: %w", mnemonic, err)
		}
	}

	var expanded []ExpandedInstruction
	switch inst := inst.(type) {
	case *BasicInstruction:
		expanded = []ExpandedInstruction{{Instruction: inst, Values: values}}
	case *PseudoInstruction:
		if expanded, err = inst.BasicInstructions(set, values); err != nil {
			return nil, err
		}
	}

	out := make([]AssembledInstruction, len(expanded))
	for i, exp := range expanded {
		word, err := exp.Instruction.Encode(exp.Values, address+uint32(i)*4)
		if err != nil {
			return nil, err
		}
		out[i] = AssembledInstruction{Word: word, Origin: exp.Instruction}
	}
	return out, nil
}
