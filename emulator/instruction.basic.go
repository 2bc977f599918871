package emulator

import (
	"fmt"
	"strings"
)

type InstructionFormat uint8

const (
	FORMAT_R InstructionFormat = iota // opcode rs rt rd shamt funct
	FORMAT_I InstructionFormat = iota // opcode rs rt imm16
	FORMAT_J InstructionFormat = iota // opcode target26
)

func (format InstructionFormat) String() string {
	switch format {
	case FORMAT_I:
		return "I"
	case FORMAT_J:
		return "J"
	}
	return "R"
}

// Where an operand lives inside the instruction word
type Field uint8

const (
	FIELD_RS          Field = iota // bits [25:21]
	FIELD_RT          Field = iota // bits [20:16]
	FIELD_RD          Field = iota // bits [15:11]
	FIELD_SHAMT       Field = iota // bits [10:6]
	FIELD_IMMEDIATE   Field = iota // bits [15:0]
	FIELD_BRANCH      Field = iota // bits [15:0], word offset from pc+4
	FIELD_TARGET      Field = iota // bits [25:0], absolute word address
	FIELD_OFFSET_BASE Field = iota // imm16(rs)
)

// Common to basic and pseudo instructions
type Instruction interface {
	Mnemonic() string
	Name() string
	Parameters() []ParameterType
}

// A real instruction with a binary encoding. Words matching it satisfy
// word&Mask == Value
type BasicInstruction struct {
	mnemonic   string
	name       string
	parameters []ParameterType
	fields     []Field

	Format    InstructionFormat
	Opcode    uint32
	Mask      uint32
	Value     uint32
	Semantics Semantics
}

func (inst *BasicInstruction) Mnemonic() string            { return inst.mnemonic }
func (inst *BasicInstruction) Name() string                { return inst.name }
func (inst *BasicInstruction) Parameters() []ParameterType { return inst.parameters }

// Operand to field mapping, aligned with Parameters
func (inst *BasicInstruction) Fields() []Field {
	return inst.fields
}

func (inst *BasicInstruction) String() string {
	return fmt.Sprintf("%s (%v-type, opcode 0x%02x)", inst.mnemonic, inst.Format, inst.Opcode)
}

// Returns true if `word` is an instance of this instruction
func (inst *BasicInstruction) Matches(word InstructionWord) bool {
	return uint32(word)&inst.Mask == inst.Value
}

// Packs `values` into a word. `address` is the location of the
// instruction, used by PC-relative branches
func (inst *BasicInstruction) Encode(values []ParameterValue, address uint32) (InstructionWord, error) {
	if len(values) != len(inst.fields) {
		return 0, fmt.Errorf("%s expects %d parameters, got %d", inst.mnemonic, len(inst.fields), len(values))
	}

	word := inst.Value
	for i, field := range inst.fields {
		v := values[i]
		switch field {
		case FIELD_RS:
			word |= (v.Register & 0x1f) << 21
		case FIELD_RT:
			word |= (v.Register & 0x1f) << 16
		case FIELD_RD:
			word |= (v.Register & 0x1f) << 11
		case FIELD_SHAMT:
			if inst.parameters[i] == PARAM_UNSIGNED_5_BIT {
				word |= (v.Immediate & 0x1f) << 6
			} else {
				word |= (v.Register & 0x1f) << 6
			}
		case FIELD_IMMEDIATE:
			word |= v.Immediate & 0xffff
		case FIELD_OFFSET_BASE:
			word |= (v.Register&0x1f)<<21 | v.Immediate&0xffff
		case FIELD_BRANCH:
			offset := int64(int32(v.Immediate-(address+4))) >> 2
			if offset < -0x8000 || offset > 0x7fff {
				return 0, fmt.Errorf("%s: branch target 0x%08x out of range", inst.mnemonic, v.Immediate)
			}
			if v.Immediate&3 != 0 {
				return 0, fmt.Errorf("%s: branch target 0x%08x not word aligned", inst.mnemonic, v.Immediate)
			}
			word |= uint32(offset) & 0xffff
		case FIELD_TARGET:
			if (address+4)&0xf0000000 != v.Immediate&0xf0000000 {
				return 0, fmt.Errorf("%s: jump target 0x%08x out of region", inst.mnemonic, v.Immediate)
			}
			word |= (v.Immediate >> 2) & 0x3ffffff
		}
	}
	return InstructionWord(word), nil
}

// Returns the operands of `word` as assembly text
func (inst *BasicInstruction) operands(word InstructionWord, address uint32) []string {
	out := make([]string, len(inst.fields))
	for i, field := range inst.fields {
		var reg uint32
		switch field {
		case FIELD_RS:
			reg = word.S()
		case FIELD_RT:
			reg = word.T()
		case FIELD_RD:
			reg = word.D()
		case FIELD_SHAMT:
			if inst.parameters[i] == PARAM_UNSIGNED_5_BIT {
				out[i] = fmt.Sprint(word.Shift())
				continue
			}
			reg = word.Shift()
		case FIELD_IMMEDIATE:
			if inst.parameters[i] == PARAM_SIGNED_16_BIT {
				out[i] = fmt.Sprint(int32(word.ImmSE()))
			} else {
				out[i] = fmt.Sprint(word.Imm())
			}
			continue
		case FIELD_OFFSET_BASE:
			out[i] = fmt.Sprintf("%d($%s)", int32(word.ImmSE()), GetRegisterName(word.S()))
			continue
		case FIELD_BRANCH:
			out[i] = fmt.Sprintf("0x%08x", word.BranchTarget(address))
			continue
		case FIELD_TARGET:
			out[i] = fmt.Sprintf("0x%08x", word.JumpTarget(address))
			continue
		}

		switch inst.parameters[i] {
		case PARAM_FLOAT_REGISTER:
			out[i] = fmt.Sprintf("$f%d", reg)
		case PARAM_COP0_REGISTER:
			out[i] = fmt.Sprintf("$%d", reg)
		default:
			out[i] = "$" + GetRegisterName(reg)
		}
	}
	return out
}

// Bit-packed runtime form of a basic instruction, paired with the
// instruction it was decoded from
type AssembledInstruction struct {
	Word   InstructionWord
	Origin *BasicInstruction
}

func (a AssembledInstruction) OperationCode() uint32       { return a.Word.Function() }
func (a AssembledInstruction) FunctionCode() uint32        { return a.Word.Subfunction() }
func (a AssembledInstruction) SourceRegister() uint32      { return a.Word.S() }
func (a AssembledInstruction) TargetRegister() uint32      { return a.Word.T() }
func (a AssembledInstruction) DestinationRegister() uint32 { return a.Word.D() }
func (a AssembledInstruction) ShiftAmount() uint32         { return a.Word.Shift() }

// Zero extended immediate of an I-type instruction
func (a AssembledInstruction) Immediate() uint32 {
	return a.Word.Imm()
}

// Sign extended immediate of an I-type instruction
func (a AssembledInstruction) ImmediateAsSigned() int32 {
	return int32(a.Word.ImmSE())
}

// 26 bit word address of a J-type instruction
func (a AssembledInstruction) Address() uint32 {
	return a.Word.ImmJump()
}

func (a AssembledInstruction) Format() InstructionFormat {
	if a.Origin == nil {
		return FORMAT_R
	}
	return a.Origin.Format
}

// Disassembles the instruction located at `address`
func (a AssembledInstruction) Disassemble(address uint32) string {
	if a.Origin == nil {
		return fmt.Sprintf(".word 0x%08x", uint32(a.Word))
	}
	ops := a.Origin.operands(a.Word, address)
	if len(ops) == 0 {
		return a.Origin.mnemonic
	}
	return a.Origin.mnemonic + " " + strings.Join(ops, ", ")
}

func (a AssembledInstruction) String() string {
	return fmt.Sprintf("0x%08x", uint32(a.Word))
}
