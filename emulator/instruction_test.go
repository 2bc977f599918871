package emulator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assemble(t *testing.T, line string, address uint32, labels map[string]uint32) []AssembledInstruction {
	t.Helper()
	set := NewMIPS32InstructionSet()
	out, err := set.AssembleLine(line, address, NewRegisterSet(), labels)
	require.NoError(t, err, line)
	return out
}

func words(instructions []AssembledInstruction) []uint32 {
	out := make([]uint32, len(instructions))
	for i, inst := range instructions {
		out[i] = uint32(inst.Word)
	}
	return out
}

func TestEncodeAdd(t *testing.T) {
	out := assemble(t, "add $9,$10,$11", TEXT_START, nil)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(0x014b4820), uint32(out[0].Word))
	assert.Equal(t, EncodeR(0, 10, 11, 9, 0, 0x20), out[0].Word)

	decoded, err := NewMIPS32InstructionSet().Decode(0x014b4820, TEXT_START)
	require.NoError(t, err)
	assert.Equal(t, "add", decoded.Origin.Mnemonic())
	assert.Equal(t, FORMAT_R, decoded.Format())
	assert.Equal(t, uint32(0), decoded.OperationCode())
	assert.Equal(t, uint32(0x20), decoded.FunctionCode())
	assert.Equal(t, uint32(10), decoded.SourceRegister())
	assert.Equal(t, uint32(11), decoded.TargetRegister())
	assert.Equal(t, uint32(9), decoded.DestinationRegister())
	assert.Equal(t, "add $t1, $t2, $t3", decoded.Disassemble(TEXT_START))
}

func TestEncodeNegativeImmediate(t *testing.T) {
	out := assemble(t, "addiu $9,$10,-100", TEXT_START, nil)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(0x2549ff9c), uint32(out[0].Word))
	assert.Equal(t, uint32(65436), out[0].Immediate())
	assert.Equal(t, int32(-100), out[0].ImmediateAsSigned())
	assert.Equal(t, FORMAT_I, out[0].Format())
	assert.Equal(t, "addiu $t1, $t2, -100", out[0].Disassemble(TEXT_START))
}

func TestEncodeJump(t *testing.T) {
	labels := map[string]uint32{"far": 0x00400100, "other": 0x10000000}
	out := assemble(t, "jal far", TEXT_START, labels)
	assert.Equal(t, EncodeJ(3, 0x00400100), out[0].Word)
	assert.Equal(t, uint32(0x00400100>>2), out[0].Address())
	assert.Equal(t, uint32(0x00400100), out[0].Word.JumpTarget(TEXT_START))

	_, err := NewMIPS32InstructionSet().AssembleLine("j other", TEXT_START, NewRegisterSet(), labels)
	assert.Error(t, err, "jump out of the 256MB region")
}

func TestEncodeBranch(t *testing.T) {
	labels := map[string]uint32{"loop": TEXT_START, "odd": TEXT_START + 2, "far": TEXT_START + 0x40000}
	out := assemble(t, "beq $t0, $t1, loop", TEXT_START+8, labels)
	assert.Equal(t, []uint32{0x1109fffd}, words(out))
	assert.Equal(t, TEXT_START, out[0].Word.BranchTarget(TEXT_START+8))

	set := NewMIPS32InstructionSet()
	_, err := set.AssembleLine("beq $t0, $t1, odd", TEXT_START, NewRegisterSet(), labels)
	assert.Error(t, err)
	_, err = set.AssembleLine("bne $t0, $t1, far", TEXT_START, NewRegisterSet(), labels)
	assert.Error(t, err)
	_, err = set.AssembleLine("beq $t0, $t1, missing", TEXT_START, NewRegisterSet(), labels)
	assert.Error(t, err)
}

func TestEncodeMemoryAccess(t *testing.T) {
	out := assemble(t, "sw $ra, -4($sp)", TEXT_START, nil)
	assert.Equal(t, EncodeI(0x2b, 29, 31, 0xfffc), out[0].Word)
	assert.Equal(t, "sw $ra, -4($sp)", out[0].Disassemble(TEXT_START))

	out = assemble(t, "lwc1 $f2, 8($a0)", TEXT_START, nil)
	assert.Equal(t, EncodeI(0x31, 4, 2, 8), out[0].Word)
}

func TestPseudoInstructions(t *testing.T) {
	labels := map[string]uint32{"value": 0x1001fffc, "loop": TEXT_START}
	cases := []struct {
		line  string
		words []uint32
	}{
		{"nop", []uint32{0}},
		{"li $t0, 0x12345678", []uint32{0x3c011234, 0x34285678}},
		{"li $t0, -1", []uint32{0x3c01ffff, 0x3428ffff}},
		{"la $a0, value", []uint32{0x3c011001, 0x3424fffc}},
		{"move $t0, $t1", []uint32{0x00094021}},
		{"not $t0, $t1", []uint32{uint32(EncodeR(0, 9, 0, 8, 0, 0x27))}},
		{"mul $t0, $t1, $t2", []uint32{uint32(EncodeR(0, 9, 10, 0, 0, 0x18)), uint32(EncodeR(0, 0, 0, 8, 0, 0x12))}},
		{"b loop", []uint32{uint32(EncodeI(4, 0, 0, 0xffff))}},
		{"blt $t0, $t1, loop", []uint32{
			uint32(EncodeR(0, 8, 9, 1, 0, 0x2a)),
			uint32(EncodeI(5, 1, 0, 0xfffe)),
		}},
		{"bgt $t0, $t1, loop", []uint32{
			uint32(EncodeR(0, 9, 8, 1, 0, 0x2a)),
			uint32(EncodeI(5, 1, 0, 0xfffe)),
		}},
		// 0x1001fffc + 0x8000 carries into the upper half
		{"lw $t0, value", []uint32{0x3c011002, uint32(EncodeI(0x23, 1, 8, 0xfffc))}},
		{"jalr $t9", []uint32{uint32(EncodeR(0, 25, 0, 31, 0, 0x09))}},
	}
	for _, test := range cases {
		out := assemble(t, test.line, TEXT_START, labels)
		assert.Equal(t, test.words, words(out), test.line)
	}
}

func TestFindPrefersBasicInstructions(t *testing.T) {
	set := NewMIPS32InstructionSet()
	regs := NewRegisterSet()

	inst, err := set.Find("addi", []string{"$t0", "$t0", "5"}, regs)
	require.NoError(t, err)
	assert.IsType(t, &BasicInstruction{}, inst)

	inst, err = set.Find("ADDI", []string{"$t0", "$t0", "100000"}, regs)
	require.NoError(t, err)
	require.IsType(t, &PseudoInstruction{}, inst)
	assert.Equal(t, 3, inst.(*PseudoInstruction).Size())

	_, err = set.Find("frobnicate", nil, regs)
	assert.Error(t, err)
	_, err = set.Find("add", []string{"$t0", "$t1"}, regs)
	assert.Error(t, err)
}

func TestDecodeUnknownWord(t *testing.T) {
	_, err := NewMIPS32InstructionSet().Decode(0xfc000000, 0x00400010)
	var notFound *InstructionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, uint32(0x00400010), notFound.Address)
	assert.Contains(t, err.Error(), "0xfc000000")
	assert.Contains(t, err.Error(), "11111100000000000000000000000000")
}

func TestDecodeEveryBasicInstruction(t *testing.T) {
	set := NewMIPS32InstructionSet()
	for _, inst := range set.Basics() {
		decoded, err := set.Decode(inst.Value, TEXT_START)
		require.NoError(t, err, inst.Mnemonic())
		assert.Same(t, inst, decoded.Origin, inst.Mnemonic())
	}
}

func TestInferParameterType(t *testing.T) {
	regs := NewRegisterSet()
	cases := map[string]ParameterType{
		"$t0":          PARAM_REGISTER,
		"$31":          PARAM_REGISTER,
		"$f2":          PARAM_FLOAT_REGISTER,
		"$status":      PARAM_COP0_REGISTER,
		"12":           PARAM_UNSIGNED_5_BIT,
		"-4":           PARAM_SIGNED_16_BIT,
		"'a'":          PARAM_SIGNED_16_BIT,
		"40000":        PARAM_UNSIGNED_16_BIT,
		"0xffffffff":   PARAM_SIGNED_32_BIT,
		"($t0)":        PARAM_REGISTER_SHIFT,
		"-4($sp)":      PARAM_SIGNED_16_BIT_REGISTER_SHIFT,
		"0x12345($t0)": PARAM_SIGNED_32_BIT_REGISTER_SHIFT,
		"main":         PARAM_LABEL,
		"array($t0)":   PARAM_LABEL_REGISTER_SHIFT,
	}
	for text, expected := range cases {
		got, ok := InferParameterType(text, regs)
		require.True(t, ok, text)
		assert.Equal(t, expected, got, text)
	}
	_, ok := InferParameterType("$nope", regs)
	assert.False(t, ok)
}

func TestSplitLine(t *testing.T) {
	label, mnemonic, operands := splitLine("loop:\taddiu\t$t0, $t0, 1 # increment")
	assert.Equal(t, "loop", label)
	assert.Equal(t, "addiu", mnemonic)
	assert.Equal(t, []string{"$t0", "$t0", "1"}, operands)

	label, mnemonic, operands = splitLine("end:")
	assert.Equal(t, "end", label)
	assert.Empty(t, mnemonic)
	assert.Empty(t, operands)
}

const countdown = `
	.text
main:	li $t0, 3
loop:	addiu $t0, $t0, -1
	bnez $t0, loop
	lw $t1, value
	.data
value:	.word 0x2a, main
`

func TestAssembleProgram(t *testing.T) {
	program, err := AssembleProgram(NewMIPS32InstructionSet(), NewRegisterSet(), countdown)
	require.NoError(t, err)

	assert.Equal(t, TEXT_START, program.Entry)
	assert.Len(t, program.Text.Words, 6)
	assert.Equal(t, []uint32{0x2a, TEXT_START}, program.Data.Words)
	assert.Equal(t, DATA_START, program.Data.Start)
	assert.True(t, program.Contains(TEXT_START+20))
	assert.False(t, program.Contains(TEXT_START+24))
	assert.False(t, program.HasKernelHandler())

	// bnez at 0x400008 jumps back to loop at 0x400008
	bnez := InstructionWord(program.Text.Words[3])
	assert.Equal(t, TEXT_START+8, bnez.BranchTarget(TEXT_START+12))

	_, err = AssembleProgram(NewMIPS32InstructionSet(), NewRegisterSet(), "add $t0, 5")
	assert.ErrorContains(t, err, "line 1")
}

func TestReadProgram(t *testing.T) {
	listing := `
# two instructions
.entry 0x00400004
.text 0x00400000
00000000 24080005
.data
0000002a
.ktext
42000018
`
	program, err := ReadProgram(strings.NewReader(listing))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00400004), program.Entry)
	assert.Equal(t, []uint32{0, 0x24080005}, program.Text.Words)
	assert.Equal(t, []uint32{0x2a}, program.Data.Words)
	assert.True(t, program.HasKernelHandler())

	var buf bytes.Buffer
	_, err = program.WriteTo(&buf)
	require.NoError(t, err)
	again, err := ReadProgram(&buf)
	require.NoError(t, err)
	assert.Equal(t, program, again)

	_, err = ReadProgram(strings.NewReader("zz"))
	assert.Error(t, err)
	_, err = ReadProgram(strings.NewReader(".entry"))
	assert.Error(t, err)
}

func TestProgramLoad(t *testing.T) {
	program := NewProgram()
	program.Text.Words = []uint32{0x014b4820}
	program.Data.Words = []uint32{7}

	for _, bigEndian := range []bool{false, true} {
		mem := NewMIPS32Memory(bigEndian)
		require.NoError(t, program.Load(mem))
		v, err := mem.GetWord(TEXT_START)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x014b4820), v)
		v, err = mem.GetWord(DATA_START)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), v)
	}
}
