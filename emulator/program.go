package emulator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	DATA_START   uint32 = 0x10010000
	KERNEL_START uint32 = EXCEPTION_HANDLER
)

// Contiguous run of words starting at Start
type Segment struct {
	Start uint32
	Words []uint32
}

// Returns the address right after the last word
func (seg Segment) End() uint64 {
	return uint64(seg.Start) + uint64(len(seg.Words))*4
}

func (seg Segment) Contains(addr uint32) bool {
	return len(seg.Words) > 0 && addr >= seg.Start && uint64(addr) < seg.End()
}

// Pre-resolved program image
type Program struct {
	Entry  uint32
	Text   Segment
	Data   Segment
	Kernel Segment
}

// Returns an empty program with the default segment addresses
func NewProgram() *Program {
	return &Program{
		Entry:  TEXT_START,
		Text:   Segment{Start: TEXT_START},
		Data:   Segment{Start: DATA_START},
		Kernel: Segment{Start: KERNEL_START},
	}
}

// Returns true if `pc` points to an instruction of the program
func (program *Program) Contains(pc uint32) bool {
	return program.Text.Contains(pc) || program.Kernel.Contains(pc)
}

// Returns true if the kernel segment covers the exception handler
func (program *Program) HasKernelHandler() bool {
	return program.Kernel.Contains(EXCEPTION_HANDLER)
}

// Writes every segment into `mem`. Caches are updated but their
// statistics are left untouched
func (program *Program) Load(mem Memory) error {
	for _, seg := range []Segment{program.Text, program.Data, program.Kernel} {
		for i, word := range seg.Words {
			b := SplitWord(word, mem.IsBigEndian())
			addr := seg.Start + uint32(i)*4
			if err := mem.RestoreBytes(addr, b[:]); err != nil {
				return fmt.Errorf("program: loading 0x%08x: %w", addr, err)
			}
		}
	}
	return nil
}

// Reads a program listing: one hexadecimal word per line, with optional
// ".text", ".data" and ".ktext" headers followed by a start address and an
// ".entry" line. '#' starts a comment
func ReadProgram(r io.Reader) (*Program, error) {
	program := NewProgram()
	current := &program.Text
	entrySet := false

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case ".text", ".data", ".ktext":
			switch fields[0] {
			case ".text":
				current = &program.Text
			case ".data":
				current = &program.Data
			default:
				current = &program.Kernel
			}
			if len(fields) > 1 {
				start, err := strconv.ParseUint(fields[1], 0, 32)
				if err != nil {
					return nil, fmt.Errorf("program: line %d: invalid address %q", line, fields[1])
				}
				if len(current.Words) > 0 {
					return nil, fmt.Errorf("program: line %d: segment %s already has words", line, fields[0])
				}
				current.Start = uint32(start)
			}
			continue
		case ".entry":
			if len(fields) != 2 {
				return nil, fmt.Errorf("program: line %d: .entry needs an address", line)
			}
			entry, err := strconv.ParseUint(fields[1], 0, 32)
			if err != nil {
				return nil, fmt.Errorf("program: line %d: invalid entry %q", line, fields[1])
			}
			program.Entry = uint32(entry)
			entrySet = true
			continue
		}

		for _, field := range fields {
			word, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(field), "0x"), 16, 32)
			if err != nil {
				return nil, fmt.Errorf("program: line %d: invalid word %q", line, field)
			}
			current.Words = append(current.Words, uint32(word))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !entrySet {
		program.Entry = program.Text.Start
	}
	return program, nil
}

// Writes the program in the format read by ReadProgram
func (program *Program) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, ".entry 0x%08x\n", program.Entry)
	for _, seg := range []struct {
		name string
		seg  Segment
	}{{".text", program.Text}, {".data", program.Data}, {".ktext", program.Kernel}} {
		if len(seg.seg.Words) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s 0x%08x\n", seg.name, seg.seg.Start)
		for _, word := range seg.seg.Words {
			fmt.Fprintf(&sb, "%08x\n", word)
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// Assembles a small program. Supports labels, ".text", ".data", ".ktext"
// and ".word"; anything else must be an instruction
func AssembleProgram(set *InstructionSet, regs *RegisterSet, source string) (*Program, error) {
	program := NewProgram()
	lines := strings.Split(source, "\n")
	labels := make(map[string]uint32)

	segmentOf := func(directive string) *Segment {
		switch directive {
		case ".data":
			return &program.Data
		case ".ktext":
			return &program.Kernel
		}
		return &program.Text
	}

	// First pass: label addresses
	cursor := map[*Segment]uint32{}
	current := &program.Text
	for i, line := range lines {
		label, mnemonic, operands := splitLine(line)
		if label != "" {
			labels[label] = current.Start + cursor[current]
		}
		switch {
		case mnemonic == "":
		case mnemonic == ".text" || mnemonic == ".data" || mnemonic == ".ktext":
			current = segmentOf(mnemonic)
		case mnemonic == ".word":
			cursor[current] += uint32(len(operands)) * 4
		default:
			inst, err := set.Find(mnemonic, operands, regs)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			cursor[current] += uint32(instructionSize(inst)) * 4
		}
	}

	// Second pass: encoding
	current = &program.Text
	for i, line := range lines {
		_, mnemonic, operands := splitLine(line)
		switch {
		case mnemonic == "":
		case mnemonic == ".text" || mnemonic == ".data" || mnemonic == ".ktext":
			current = segmentOf(mnemonic)
		case mnemonic == ".word":
			for _, op := range operands {
				val, err := PARAM_SIGNED_32_BIT.Parse(op, regs, labels)
				if err != nil {
					if val, err = PARAM_LABEL.Parse(op, regs, labels); err != nil {
						return nil, fmt.Errorf("line %d: %w", i+1, err)
					}
				}
				current.Words = append(current.Words, val.Immediate)
			}
		default:
			address := current.Start + uint32(len(current.Words))*4
			words, err := set.AssembleLine(line, address, regs, labels)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			for _, w := range words {
				current.Words = append(current.Words, uint32(w.Word))
			}
		}
	}

	if addr, ok := labels["main"]; ok {
		program.Entry = addr
	}
	return program, nil
}
