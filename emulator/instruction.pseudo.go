package emulator

import "fmt"

// A basic instruction with its already parsed operands
type ExpandedInstruction struct {
	Instruction *BasicInstruction
	Values      []ParameterValue
}

type expander func(set *InstructionSet, values []ParameterValue) ([]ExpandedInstruction, error)

// An assembler convenience that expands into a fixed sequence of basic
// instructions
type PseudoInstruction struct {
	mnemonic   string
	name       string
	parameters []ParameterType
	size       int
	expand     expander
}

func NewPseudoInstruction(mnemonic, name string, size int, expand expander, params ...ParameterType) *PseudoInstruction {
	return &PseudoInstruction{
		mnemonic:   mnemonic,
		name:       name,
		parameters: params,
		size:       size,
		expand:     expand,
	}
}

func (inst *PseudoInstruction) Mnemonic() string            { return inst.mnemonic }
func (inst *PseudoInstruction) Name() string                { return inst.name }
func (inst *PseudoInstruction) Parameters() []ParameterType { return inst.parameters }

// Number of basic instructions the expansion produces
func (inst *PseudoInstruction) Size() int {
	return inst.size
}

// Returns the ordered expansion of the pseudo-instruction for `values`
func (inst *PseudoInstruction) BasicInstructions(set *InstructionSet, values []ParameterValue) ([]ExpandedInstruction, error) {
	if len(values) != len(inst.parameters) {
		return nil, fmt.Errorf("%s expects %d parameters, got %d", inst.mnemonic, len(inst.parameters), len(values))
	}
	out, err := inst.expand(set, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inst.mnemonic, err)
	}
	if len(out) != inst.size {
		panicFmt("%s expanded into %d instructions, expected %d", inst.mnemonic, len(out), inst.size)
	}
	return out, nil
}

// Helpers used by expansions

func reg(index uint32) ParameterValue {
	return ParameterValue{Type: PARAM_REGISTER, Register: index}
}

func imm(t ParameterType, val uint32) ParameterValue {
	return ParameterValue{Type: t, Immediate: val}
}

func offsetBase(offset, base uint32) ParameterValue {
	return ParameterValue{Type: PARAM_SIGNED_16_BIT_REGISTER_SHIFT, Register: base, Immediate: offset}
}

// Splits a 32 bit value into the halves loaded by lui/ori
func splitUpperLower(val uint32) (uint32, uint32) {
	return val >> 16, val & 0xffff
}

// Splits an address into the halves used by lui + signed offset
func splitUpperOffset(val uint32) (uint32, uint32) {
	return (val + 0x8000) >> 16, val & 0xffff
}

func (set *InstructionSet) expansion(mnemonic string, values ...ParameterValue) (ExpandedInstruction, error) {
	types := make([]ParameterType, len(values))
	for i, v := range values {
		types[i] = v.Type
	}
	inst := set.basic(mnemonic, types...)
	if inst == nil {
		return ExpandedInstruction{}, fmt.Errorf("basic instruction %s %v not found", mnemonic, types)
	}
	return ExpandedInstruction{Instruction: inst, Values: values}, nil
}

type expansionStep struct {
	mnemonic string
	values   []ParameterValue
}

func do(mnemonic string, values ...ParameterValue) expansionStep {
	return expansionStep{mnemonic, values}
}

// Builds an expander from a list of steps
func steps(build func(v []ParameterValue) []expansionStep) expander {
	return func(set *InstructionSet, values []ParameterValue) ([]ExpandedInstruction, error) {
		var out []ExpandedInstruction
		for _, step := range build(values) {
			exp, err := set.expansion(step.mnemonic, step.values...)
			if err != nil {
				return nil, err
			}
			out = append(out, exp)
		}
		return out, nil
	}
}
