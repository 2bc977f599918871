package emulator

// Raw 32 bit instruction word
type InstructionWord uint32

// Return bits [31:26] of the instruction
func (op InstructionWord) Function() uint32 {
	return uint32(op) >> 26
}

// Return bits [5:0] of the instruction
func (op InstructionWord) Subfunction() uint32 {
	return uint32(op) & 0x3f
}

// Return register index in bits [25:21]
func (op InstructionWord) S() uint32 {
	return (uint32(op) >> 21) & 0x1f
}

// Return register index in bits [20:16]
func (op InstructionWord) T() uint32 {
	return (uint32(op) >> 16) & 0x1f
}

// Return register index in bits [15:11]
func (op InstructionWord) D() uint32 {
	return (uint32(op) >> 11) & 0x1f
}

// Return immediate value in bits [15:0]
func (op InstructionWord) Imm() uint32 {
	return uint32(op) & 0xffff
}

// Return immediate value in bits [15:0] as a sign-extended 32 bit value
func (op InstructionWord) ImmSE() uint32 {
	return signExtend16(uint32(op))
}

// Jump target stored in bits [25:0]
func (op InstructionWord) ImmJump() uint32 {
	return uint32(op) & 0x3ffffff
}

// Shift Immediate values are stored in bits [10:6]
func (op InstructionWord) Shift() uint32 {
	return (uint32(op) >> 6) & 0x1f
}

// Packs an R-type instruction: opcode[31:26] rs[25:21] rt[20:16] rd[15:11]
// shamt[10:6] funct[5:0]
func EncodeR(opcode, rs, rt, rd, shamt, funct uint32) InstructionWord {
	return InstructionWord((opcode&0x3f)<<26 | (rs&0x1f)<<21 | (rt&0x1f)<<16 |
		(rd&0x1f)<<11 | (shamt&0x1f)<<6 | funct&0x3f)
}

// Packs an I-type instruction: opcode[31:26] rs[25:21] rt[20:16] imm16[15:0]
func EncodeI(opcode, rs, rt, imm uint32) InstructionWord {
	return InstructionWord((opcode&0x3f)<<26 | (rs&0x1f)<<21 | (rt&0x1f)<<16 | imm&0xffff)
}

// Packs a J-type instruction. `target` must be word aligned, only its
// bits [27:2] are stored
func EncodeJ(opcode, target uint32) InstructionWord {
	return InstructionWord((opcode&0x3f)<<26 | (target>>2)&0x3ffffff)
}

// Rebuilds the absolute target of a jump located at `pc` using the upper
// 4 bits of the address of the next instruction
func (op InstructionWord) JumpTarget(pc uint32) uint32 {
	return (pc+4)&0xf0000000 | op.ImmJump()<<2
}

// Returns the target of a PC-relative branch located at `pc`
func (op InstructionWord) BranchTarget(pc uint32) uint32 {
	return pc + 4 + op.ImmSE()<<2
}
