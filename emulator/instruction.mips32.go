package emulator

import (
	"errors"
	"math"
)

var errDivisionByZero = errors.New("division by zero")

type operand struct {
	t ParameterType
	f Field
}

var (
	opRD     = operand{PARAM_REGISTER, FIELD_RD}
	opRS     = operand{PARAM_REGISTER, FIELD_RS}
	opRT     = operand{PARAM_REGISTER, FIELD_RT}
	opSA     = operand{PARAM_UNSIGNED_5_BIT, FIELD_SHAMT}
	opSImm   = operand{PARAM_SIGNED_16_BIT, FIELD_IMMEDIATE}
	opUImm   = operand{PARAM_UNSIGNED_16_BIT, FIELD_IMMEDIATE}
	opMem    = operand{PARAM_SIGNED_16_BIT_REGISTER_SHIFT, FIELD_OFFSET_BASE}
	opBranch = operand{PARAM_LABEL, FIELD_BRANCH}
	opTarget = operand{PARAM_LABEL, FIELD_TARGET}
	opFD     = operand{PARAM_FLOAT_REGISTER, FIELD_SHAMT}
	opFS     = operand{PARAM_FLOAT_REGISTER, FIELD_RD}
	opFT     = operand{PARAM_FLOAT_REGISTER, FIELD_RT}
	opC0     = operand{PARAM_COP0_REGISTER, FIELD_RD}
)

const (
	OPCODE_SPECIAL = 0x00
	OPCODE_REGIMM  = 0x01
	OPCODE_COP0    = 0x10
	OPCODE_COP1    = 0x11
	COP1_FMT_S     = 0x10
)

func newBasic(mnemonic, name string, format InstructionFormat, opcode, mask, value uint32, sem Semantics, ops ...operand) *BasicInstruction {
	inst := &BasicInstruction{
		mnemonic:  mnemonic,
		name:      name,
		Format:    format,
		Opcode:    opcode,
		Mask:      mask,
		Value:     value,
		Semantics: sem,
	}
	for _, op := range ops {
		inst.parameters = append(inst.parameters, op.t)
		inst.fields = append(inst.fields, op.f)
	}
	return inst
}

// SPECIAL instruction selected by its function code
func special(mnemonic, name string, funct uint32, sem Semantics, ops ...operand) *BasicInstruction {
	return newBasic(mnemonic, name, FORMAT_R, OPCODE_SPECIAL, 0xfc00003f, funct, sem, ops...)
}

// Instruction selected by its opcode alone
func immediate(mnemonic, name string, opcode uint32, sem Semantics, ops ...operand) *BasicInstruction {
	return newBasic(mnemonic, name, FORMAT_I, opcode, 0xfc000000, opcode<<26, sem, ops...)
}

// Instruction selected by its opcode and its rt field
func regimm(mnemonic, name string, opcode, rt uint32, sem Semantics, ops ...operand) *BasicInstruction {
	return newBasic(mnemonic, name, FORMAT_I, opcode, 0xfc1f0000, opcode<<26|rt<<16, sem, ops...)
}

// Coprocessor instruction selected by its rs field
func coprocessor(mnemonic, name string, opcode, rs uint32, sem Semantics, ops ...operand) *BasicInstruction {
	return newBasic(mnemonic, name, FORMAT_R, opcode, 0xffe00000, opcode<<26|rs<<21, sem, ops...)
}

// Single precision coprocessor 1 arithmetic
func fpu(mnemonic, name string, funct uint32, sem Semantics, ops ...operand) *BasicInstruction {
	return newBasic(mnemonic, name, FORMAT_R, OPCODE_COP1, 0xffe0003f, OPCODE_COP1<<26|COP1_FMT_S<<21|funct, sem, ops...)
}

type regPicker func(x *Execution) *Register

var (
	rsReg regPicker = func(x *Execution) *Register { return x.Registers().General(x.Word().S()) }
	rtReg regPicker = func(x *Execution) *Register { return x.Registers().General(x.Word().T()) }
	rdReg regPicker = func(x *Execution) *Register { return x.Registers().General(x.Word().D()) }
	raReg regPicker = func(x *Execution) *Register { return x.Registers().General(REGISTER_RA) }
	hiReg regPicker = func(x *Execution) *Register { return x.Registers().HI }
	loReg regPicker = func(x *Execution) *Register { return x.Registers().LO }
	fsReg regPicker = func(x *Execution) *Register { return x.Registers().Cop1(x.Word().D()) }
	ftReg regPicker = func(x *Execution) *Register { return x.Registers().Cop1(x.Word().T()) }
	fdReg regPicker = func(x *Execution) *Register { return x.Registers().Cop1(x.Word().Shift()) }
	c0Reg regPicker = func(x *Execution) *Register { return x.Registers().Cop0(x.Word().D()) }
)

// Unimplemented coprocessor 0 registers resolve to nil and are skipped
func regsOf(pickers ...regPicker) func(x *Execution) []*Register {
	return func(x *Execution) []*Register {
		out := make([]*Register, 0, len(pickers))
		for _, pick := range pickers {
			if reg := pick(x); reg != nil {
				out = append(out, reg)
			}
		}
		return out
	}
}

func aluR(fn func(a, b uint32) (uint32, error)) Semantics {
	return Semantics{
		Class:   CLASS_ALU,
		Sources: regsOf(rsReg, rtReg),
		Dests:   regsOf(rdReg),
		Execute: func(x *Execution) error {
			r, err := fn(x.Operand(0), x.Operand(1))
			x.Results[0] = r
			return err
		},
	}
}

func shiftImm(fn func(v, sa uint32) uint32) Semantics {
	return Semantics{
		Class:   CLASS_ALU,
		Sources: regsOf(rtReg),
		Dests:   regsOf(rdReg),
		Execute: func(x *Execution) error {
			x.Results[0] = fn(x.Operand(0), x.Word().Shift())
			return nil
		},
	}
}

func shiftVar(fn func(v, sa uint32) uint32) Semantics {
	return Semantics{
		Class:   CLASS_ALU,
		Sources: regsOf(rtReg, rsReg),
		Dests:   regsOf(rdReg),
		Execute: func(x *Execution) error {
			x.Results[0] = fn(x.Operand(0), x.Operand(1)&0x1f)
			return nil
		},
	}
}

func aluI(signed bool, fn func(a, imm uint32) (uint32, error)) Semantics {
	return Semantics{
		Class:   CLASS_ALU,
		Sources: regsOf(rsReg),
		Dests:   regsOf(rtReg),
		Execute: func(x *Execution) error {
			imm := x.Word().Imm()
			if signed {
				imm = x.Word().ImmSE()
			}
			r, err := fn(x.Operand(0), imm)
			x.Results[0] = r
			return err
		},
	}
}

func mulDiv(fn func(a, b uint32) (hi, lo uint32, err error)) Semantics {
	return Semantics{
		Class:   CLASS_MULDIV,
		Sources: regsOf(rsReg, rtReg),
		Dests:   regsOf(hiReg, loReg),
		Execute: func(x *Execution) error {
			hi, lo, err := fn(x.Operand(0), x.Operand(1))
			x.Results[0], x.Results[1] = hi, lo
			return err
		},
	}
}

func move(class ExecutionClass, from, to regPicker) Semantics {
	return Semantics{
		Class:   class,
		Sources: regsOf(from),
		Dests:   regsOf(to),
		Execute: func(x *Execution) error {
			x.Results[0] = x.Operand(0)
			return nil
		},
	}
}

func effectiveAddress(x *Execution) error {
	x.MemAddress = x.Operand(0) + x.Word().ImmSE()
	return nil
}

func load(size int, signed bool, dest regPicker) Semantics {
	return Semantics{
		Class:   CLASS_MEMORY,
		Sources: regsOf(rsReg),
		Dests:   regsOf(dest),
		Execute: effectiveAddress,
		Memory: func(x *Execution) error {
			v, err := x.Load(x.MemAddress, size)
			if err != nil {
				return err
			}
			if signed {
				switch size {
				case 1:
					v = uint32(int32(int8(v)))
				case 2:
					v = uint32(int32(int16(v)))
				}
			}
			x.Results[0] = v
			return nil
		},
	}
}

func store(size int, src regPicker) Semantics {
	return Semantics{
		Class:   CLASS_MEMORY,
		Sources: regsOf(rsReg, src),
		Execute: effectiveAddress,
		Memory: func(x *Execution) error {
			return x.Store(x.MemAddress, size, x.Operand(1))
		},
	}
}

func branch(cond func(a, b uint32) bool) Semantics {
	return Semantics{
		Class:   CLASS_BRANCH,
		Sources: regsOf(rsReg, rtReg),
		Execute: func(x *Execution) error {
			if cond(x.Operand(0), x.Operand(1)) {
				x.Jump(x.Word().BranchTarget(x.Address))
			}
			return nil
		},
	}
}

func branchZero(cond func(a int32) bool) Semantics {
	return Semantics{
		Class:   CLASS_BRANCH,
		Sources: regsOf(rsReg),
		Execute: func(x *Execution) error {
			if cond(int32(x.Operand(0))) {
				x.Jump(x.Word().BranchTarget(x.Address))
			}
			return nil
		},
	}
}

// Register jumps fault before the program counter moves to a target that
// isn't word aligned
func jumpRegister(x *Execution, target uint32) error {
	if target&3 != 0 {
		return unaligned(target, false)
	}
	x.Jump(target)
	return nil
}

func fpuArith(fn func(a, b float32) float32) Semantics {
	return Semantics{
		Class:   CLASS_FPU,
		Sources: regsOf(fsReg, ftReg),
		Dests:   regsOf(fdReg),
		Execute: func(x *Execution) error {
			a := math.Float32frombits(x.Operand(0))
			b := math.Float32frombits(x.Operand(1))
			x.Results[0] = math.Float32bits(fn(a, b))
			return nil
		},
	}
}

func signedAdd(a, b uint32) (uint32, error) {
	r, err := add32Overflow(int32(a), int32(b))
	return uint32(r), err
}

func signedSub(a, b uint32) (uint32, error) {
	r, err := sub32Overflow(int32(a), int32(b))
	return uint32(r), err
}

func plain(fn func(a, b uint32) uint32) func(a, b uint32) (uint32, error) {
	return func(a, b uint32) (uint32, error) {
		return fn(a, b), nil
	}
}

func basicInstructions() []*BasicInstruction {
	return []*BasicInstruction{
		// Shifts
		special("sll", "Shift left logical", 0x00, shiftImm(func(v, sa uint32) uint32 { return v << sa }), opRD, opRT, opSA),
		special("srl", "Shift right logical", 0x02, shiftImm(func(v, sa uint32) uint32 { return v >> sa }), opRD, opRT, opSA),
		special("sra", "Shift right arithmetic", 0x03, shiftImm(func(v, sa uint32) uint32 { return uint32(int32(v) >> sa) }), opRD, opRT, opSA),
		special("sllv", "Shift left logical variable", 0x04, shiftVar(func(v, sa uint32) uint32 { return v << sa }), opRD, opRT, opRS),
		special("srlv", "Shift right logical variable", 0x06, shiftVar(func(v, sa uint32) uint32 { return v >> sa }), opRD, opRT, opRS),
		special("srav", "Shift right arithmetic variable", 0x07, shiftVar(func(v, sa uint32) uint32 { return uint32(int32(v) >> sa) }), opRD, opRT, opRS),

		// Jumps through registers
		special("jr", "Jump register", 0x08, Semantics{
			Class:   CLASS_BRANCH,
			Sources: regsOf(rsReg),
			Execute: func(x *Execution) error {
				return jumpRegister(x, x.Operand(0))
			},
		}, opRS),
		special("jalr", "Jump and link register", 0x09, Semantics{
			Class:   CLASS_BRANCH,
			Sources: regsOf(rsReg),
			Dests:   regsOf(rdReg),
			Execute: func(x *Execution) error {
				x.Results[0] = x.Address + 4
				return jumpRegister(x, x.Operand(0))
			},
		}, opRD, opRS),

		// System
		special("syscall", "System call", 0x0c, Semantics{
			Class:       CLASS_SYSTEM,
			Serializing: true,
			Execute: func(x *Execution) error {
				return x.sim.syscall(x)
			},
		}),
		special("break", "Breakpoint", 0x0d, Semantics{
			Class:       CLASS_SYSTEM,
			Serializing: true,
			Execute: func(x *Execution) error {
				return &RuntimeInstructionError{Code: EXCEPTION_BREAK, Address: x.Address}
			},
		}),

		// HI and LO
		special("mfhi", "Move from HI", 0x10, move(CLASS_MULDIV, hiReg, rdReg), opRD),
		special("mthi", "Move to HI", 0x11, move(CLASS_MULDIV, rsReg, hiReg), opRS),
		special("mflo", "Move from LO", 0x12, move(CLASS_MULDIV, loReg, rdReg), opRD),
		special("mtlo", "Move to LO", 0x13, move(CLASS_MULDIV, rsReg, loReg), opRS),
		special("mult", "Multiply", 0x18, mulDiv(func(a, b uint32) (uint32, uint32, error) {
			r := uint64(int64(int32(a)) * int64(int32(b)))
			return uint32(r >> 32), uint32(r), nil
		}), opRS, opRT),
		special("multu", "Multiply unsigned", 0x19, mulDiv(func(a, b uint32) (uint32, uint32, error) {
			r := uint64(a) * uint64(b)
			return uint32(r >> 32), uint32(r), nil
		}), opRS, opRT),
		special("div", "Divide", 0x1a, mulDiv(func(a, b uint32) (uint32, uint32, error) {
			if b == 0 {
				return 0, 0, errDivisionByZero
			}
			n, d := int32(a), int32(b)
			if n == math.MinInt32 && d == -1 {
				return 0, uint32(n), nil
			}
			return uint32(n % d), uint32(n / d), nil
		}), opRS, opRT),
		special("divu", "Divide unsigned", 0x1b, mulDiv(func(a, b uint32) (uint32, uint32, error) {
			if b == 0 {
				return 0, 0, errDivisionByZero
			}
			return a % b, a / b, nil
		}), opRS, opRT),

		// Arithmetic and logic
		special("add", "Add", 0x20, aluR(signedAdd), opRD, opRS, opRT),
		special("addu", "Add unsigned", 0x21, aluR(plain(func(a, b uint32) uint32 { return a + b })), opRD, opRS, opRT),
		special("sub", "Subtract", 0x22, aluR(signedSub), opRD, opRS, opRT),
		special("subu", "Subtract unsigned", 0x23, aluR(plain(func(a, b uint32) uint32 { return a - b })), opRD, opRS, opRT),
		special("and", "Bitwise and", 0x24, aluR(plain(func(a, b uint32) uint32 { return a & b })), opRD, opRS, opRT),
		special("or", "Bitwise or", 0x25, aluR(plain(func(a, b uint32) uint32 { return a | b })), opRD, opRS, opRT),
		special("xor", "Bitwise xor", 0x26, aluR(plain(func(a, b uint32) uint32 { return a ^ b })), opRD, opRS, opRT),
		special("nor", "Bitwise nor", 0x27, aluR(plain(func(a, b uint32) uint32 { return ^(a | b) })), opRD, opRS, opRT),
		special("slt", "Set on less than", 0x2a, aluR(plain(func(a, b uint32) uint32 { return oneIfTrue(int32(a) < int32(b)) })), opRD, opRS, opRT),
		special("sltu", "Set on less than unsigned", 0x2b, aluR(plain(func(a, b uint32) uint32 { return oneIfTrue(a < b) })), opRD, opRS, opRT),

		// Branches
		regimm("bltz", "Branch on less than zero", OPCODE_REGIMM, 0x00, branchZero(func(a int32) bool { return a < 0 }), opRS, opBranch),
		regimm("bgez", "Branch on greater than or equal to zero", OPCODE_REGIMM, 0x01, branchZero(func(a int32) bool { return a >= 0 }), opRS, opBranch),
		immediate("beq", "Branch on equal", 0x04, branch(func(a, b uint32) bool { return a == b }), opRS, opRT, opBranch),
		immediate("bne", "Branch on not equal", 0x05, branch(func(a, b uint32) bool { return a != b }), opRS, opRT, opBranch),
		regimm("blez", "Branch on less than or equal to zero", 0x06, 0x00, branchZero(func(a int32) bool { return a <= 0 }), opRS, opBranch),
		regimm("bgtz", "Branch on greater than zero", 0x07, 0x00, branchZero(func(a int32) bool { return a > 0 }), opRS, opBranch),

		// Jumps
		newBasic("j", "Jump", FORMAT_J, 0x02, 0xfc000000, 0x02<<26, Semantics{
			Class: CLASS_BRANCH,
			Execute: func(x *Execution) error {
				x.Jump(x.Word().JumpTarget(x.Address))
				return nil
			},
		}, opTarget),
		newBasic("jal", "Jump and link", FORMAT_J, 0x03, 0xfc000000, 0x03<<26, Semantics{
			Class: CLASS_BRANCH,
			Dests: regsOf(raReg),
			Execute: func(x *Execution) error {
				x.Results[0] = x.Address + 4
				x.Jump(x.Word().JumpTarget(x.Address))
				return nil
			},
		}, opTarget),

		// Immediate arithmetic and logic
		immediate("addi", "Add immediate", 0x08, aluI(true, signedAdd), opRT, opRS, opSImm),
		immediate("addiu", "Add immediate unsigned", 0x09, aluI(true, plain(func(a, b uint32) uint32 { return a + b })), opRT, opRS, opSImm),
		immediate("slti", "Set on less than immediate", 0x0a, aluI(true, plain(func(a, b uint32) uint32 { return oneIfTrue(int32(a) < int32(b)) })), opRT, opRS, opSImm),
		immediate("sltiu", "Set on less than immediate unsigned", 0x0b, aluI(true, plain(func(a, b uint32) uint32 { return oneIfTrue(a < b) })), opRT, opRS, opSImm),
		immediate("andi", "Bitwise and immediate", 0x0c, aluI(false, plain(func(a, b uint32) uint32 { return a & b })), opRT, opRS, opUImm),
		immediate("ori", "Bitwise or immediate", 0x0d, aluI(false, plain(func(a, b uint32) uint32 { return a | b })), opRT, opRS, opUImm),
		immediate("xori", "Bitwise xor immediate", 0x0e, aluI(false, plain(func(a, b uint32) uint32 { return a ^ b })), opRT, opRS, opUImm),
		immediate("lui", "Load upper immediate", 0x0f, Semantics{
			Class: CLASS_ALU,
			Dests: regsOf(rtReg),
			Execute: func(x *Execution) error {
				x.Results[0] = x.Word().Imm() << 16
				return nil
			},
		}, opRT, opUImm),

		// Coprocessor 0
		coprocessor("mfc0", "Move from coprocessor 0", OPCODE_COP0, 0x00, Semantics{
			Class:   CLASS_SYSTEM,
			Sources: regsOf(c0Reg),
			Dests:   regsOf(rtReg),
			Execute: func(x *Execution) error {
				if len(x.Sources) == 0 {
					return &RuntimeInstructionError{Code: EXCEPTION_COPROCESSOR_ERROR, Address: x.Address, Msg: "unimplemented cop0 register"}
				}
				x.Results[0] = x.Operand(0)
				return nil
			},
		}, opRT, opC0),
		coprocessor("mtc0", "Move to coprocessor 0", OPCODE_COP0, 0x04, Semantics{
			Class:       CLASS_SYSTEM,
			Serializing: true,
			Sources:     regsOf(rtReg),
			Dests:       regsOf(c0Reg),
			Execute: func(x *Execution) error {
				if len(x.Dests) == 0 {
					return &RuntimeInstructionError{Code: EXCEPTION_COPROCESSOR_ERROR, Address: x.Address, Msg: "unimplemented cop0 register"}
				}
				x.Results[0] = x.Operand(0)
				return nil
			},
		}, opRT, opC0),
		newBasic("eret", "Exception return", FORMAT_R, OPCODE_COP0, 0xffffffff, 0x42000018, Semantics{
			Class:       CLASS_SYSTEM,
			Serializing: true,
			Execute: func(x *Execution) error {
				if epc := x.sim.Cop0.Epc.Value(); epc&3 != 0 {
					return unaligned(epc, false)
				}
				x.Jump(x.sim.Cop0.ReturnFromException())
				return nil
			},
		}),

		// Coprocessor 1
		coprocessor("mfc1", "Move from coprocessor 1", OPCODE_COP1, 0x00, move(CLASS_FPU, fsReg, rtReg), opRT, opFS),
		coprocessor("mtc1", "Move to coprocessor 1", OPCODE_COP1, 0x04, move(CLASS_FPU, rtReg, fsReg), opRT, opFS),
		fpu("add.s", "Add single", 0x00, fpuArith(func(a, b float32) float32 { return a + b }), opFD, opFS, opFT),
		fpu("sub.s", "Subtract single", 0x01, fpuArith(func(a, b float32) float32 { return a - b }), opFD, opFS, opFT),
		fpu("mul.s", "Multiply single", 0x02, fpuArith(func(a, b float32) float32 { return a * b }), opFD, opFS, opFT),
		fpu("div.s", "Divide single", 0x03, fpuArith(func(a, b float32) float32 { return a / b }), opFD, opFS, opFT),
		fpu("mov.s", "Move single", 0x06, move(CLASS_FPU, fsReg, fdReg), opFD, opFS),

		// Loads and stores
		immediate("lb", "Load byte", 0x20, load(1, true, rtReg), opRT, opMem),
		immediate("lh", "Load halfword", 0x21, load(2, true, rtReg), opRT, opMem),
		immediate("lw", "Load word", 0x23, load(4, false, rtReg), opRT, opMem),
		immediate("lbu", "Load byte unsigned", 0x24, load(1, false, rtReg), opRT, opMem),
		immediate("lhu", "Load halfword unsigned", 0x25, load(2, false, rtReg), opRT, opMem),
		immediate("sb", "Store byte", 0x28, store(1, rtReg), opRT, opMem),
		immediate("sh", "Store halfword", 0x29, store(2, rtReg), opRT, opMem),
		immediate("sw", "Store word", 0x2b, store(4, rtReg), opRT, opMem),
		immediate("lwc1", "Load word to coprocessor 1", 0x31, load(4, false, ftReg), opFT, opMem),
		immediate("swc1", "Store word from coprocessor 1", 0x39, store(4, ftReg), opFT, opMem),
	}
}

func pseudoInstructions() []*PseudoInstruction {
	zero, at := reg(REGISTER_ZERO), reg(REGISTER_AT)
	upper := func(v uint32) ParameterValue { return imm(PARAM_UNSIGNED_16_BIT, v) }
	label := func(v ParameterValue) ParameterValue { return ParameterValue{Type: PARAM_LABEL, Immediate: v.Immediate, Label: v.Label} }

	loadAddress := steps(func(v []ParameterValue) []expansionStep {
		hi, lo := splitUpperLower(v[1].Immediate)
		return []expansionStep{
			do("lui", at, upper(hi)),
			do("ori", reg(v[0].Register), at, upper(lo)),
		}
	})
	compareBranch := func(swap bool, taken string) expander {
		return steps(func(v []ParameterValue) []expansionStep {
			a, b := reg(v[0].Register), reg(v[1].Register)
			if swap {
				a, b = b, a
			}
			return []expansionStep{
				do("slt", at, a, b),
				do(taken, at, zero, label(v[2])),
			}
		})
	}
	memoryLabel := func(mnemonic string) expander {
		return steps(func(v []ParameterValue) []expansionStep {
			hi, lo := splitUpperOffset(v[1].Immediate)
			return []expansionStep{
				do("lui", at, upper(hi)),
				do(mnemonic, reg(v[0].Register), offsetBase(lo, REGISTER_AT)),
			}
		})
	}

	return []*PseudoInstruction{
		NewPseudoInstruction("nop", "No operation", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("sll", zero, zero, imm(PARAM_UNSIGNED_5_BIT, 0))}
		})),
		NewPseudoInstruction("li", "Load immediate", 2, loadAddress, PARAM_REGISTER, PARAM_SIGNED_32_BIT),
		NewPseudoInstruction("la", "Load address", 2, loadAddress, PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("move", "Move", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("addu", reg(v[0].Register), zero, reg(v[1].Register))}
		}), PARAM_REGISTER, PARAM_REGISTER),
		NewPseudoInstruction("not", "Bitwise not", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("nor", reg(v[0].Register), reg(v[1].Register), zero)}
		}), PARAM_REGISTER, PARAM_REGISTER),
		NewPseudoInstruction("neg", "Negate", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("sub", reg(v[0].Register), zero, reg(v[1].Register))}
		}), PARAM_REGISTER, PARAM_REGISTER),
		NewPseudoInstruction("mul", "Multiply to register", 2, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{
				do("mult", reg(v[1].Register), reg(v[2].Register)),
				do("mflo", reg(v[0].Register)),
			}
		}), PARAM_REGISTER, PARAM_REGISTER, PARAM_REGISTER),
		NewPseudoInstruction("addi", "Add 32-bit immediate", 3, steps(func(v []ParameterValue) []expansionStep {
			hi, lo := splitUpperLower(v[2].Immediate)
			return []expansionStep{
				do("lui", at, upper(hi)),
				do("ori", at, at, upper(lo)),
				do("add", reg(v[0].Register), reg(v[1].Register), at),
			}
		}), PARAM_REGISTER, PARAM_REGISTER, PARAM_SIGNED_32_BIT),
		NewPseudoInstruction("jalr", "Jump and link register", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("jalr", reg(REGISTER_RA), reg(v[0].Register))}
		}), PARAM_REGISTER),
		NewPseudoInstruction("b", "Branch", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("beq", zero, zero, label(v[0]))}
		}), PARAM_LABEL),
		NewPseudoInstruction("beqz", "Branch on equal to zero", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("beq", reg(v[0].Register), zero, label(v[1]))}
		}), PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("bnez", "Branch on not equal to zero", 1, steps(func(v []ParameterValue) []expansionStep {
			return []expansionStep{do("bne", reg(v[0].Register), zero, label(v[1]))}
		}), PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("blt", "Branch on less than", 2, compareBranch(false, "bne"), PARAM_REGISTER, PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("bge", "Branch on greater than or equal", 2, compareBranch(false, "beq"), PARAM_REGISTER, PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("bgt", "Branch on greater than", 2, compareBranch(true, "bne"), PARAM_REGISTER, PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("ble", "Branch on less than or equal", 2, compareBranch(true, "beq"), PARAM_REGISTER, PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("lw", "Load word from label", 2, memoryLabel("lw"), PARAM_REGISTER, PARAM_LABEL),
		NewPseudoInstruction("sw", "Store word to label", 2, memoryLabel("sw"), PARAM_REGISTER, PARAM_LABEL),
	}
}

// Returns the MIPS32 instruction set, including the coprocessor 0 and
// single precision coprocessor 1 subsets
func NewMIPS32InstructionSet() *InstructionSet {
	set := NewInstructionSet("MIPS32")
	for _, inst := range basicInstructions() {
		set.AddBasic(inst)
	}
	for _, inst := range pseudoInstructions() {
		set.AddPseudo(inst)
	}
	return set
}
