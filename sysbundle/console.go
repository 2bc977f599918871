package sysbundle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gaeqs/gojams/emulator"
)

const (
	SYSCALL_PRINT_INT    uint32 = 1
	SYSCALL_PRINT_FLOAT  uint32 = 2
	SYSCALL_PRINT_STRING uint32 = 4
	SYSCALL_READ_INT     uint32 = 5
	SYSCALL_EXIT         uint32 = 10
	SYSCALL_PRINT_CHAR   uint32 = 11
	SYSCALL_EXIT2        uint32 = 17
)

// Longest string print string will read before giving up
const MAX_STRING_LENGTH = 1 << 16

var ErrUnterminatedString = errors.New("unterminated string")

// Console syscalls over a reader and a writer. Reads and writes are
// serialized so the same console can serve several simulations
type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// Creates a console reading integers from `in` and printing to `out`
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Binds every console syscall into `table`
func (console *Console) Register(table *emulator.SyscallTable) {
	table.Bind(SYSCALL_PRINT_INT, emulator.SyscallFunc(console.printInt))
	table.Bind(SYSCALL_PRINT_FLOAT, emulator.SyscallFunc(console.printFloat))
	table.Bind(SYSCALL_PRINT_STRING, emulator.SyscallFunc(console.printString))
	table.Bind(SYSCALL_READ_INT, emulator.SyscallFunc(console.readInt))
	table.Bind(SYSCALL_EXIT, emulator.SyscallFunc(exit))
	table.Bind(SYSCALL_PRINT_CHAR, emulator.SyscallFunc(console.printChar))
	table.Bind(SYSCALL_EXIT2, emulator.SyscallFunc(exit2))
}

func argument(ctx emulator.SyscallContext) uint32 {
	return ctx.Registers().General(emulator.REGISTER_A0).Value()
}

func (console *Console) write(s string) error {
	console.mu.Lock()
	defer console.mu.Unlock()
	_, err := io.WriteString(console.out, s)
	return err
}

func (console *Console) printInt(ctx emulator.SyscallContext) error {
	return console.write(strconv.Itoa(int(int32(argument(ctx)))))
}

// prints $f12
func (console *Console) printFloat(ctx emulator.SyscallContext) error {
	f := ctx.Registers().Cop1(12).FloatValue()
	return console.write(strconv.FormatFloat(float64(f), 'g', -1, 32))
}

func (console *Console) printChar(ctx emulator.SyscallContext) error {
	return console.write(string(rune(byte(argument(ctx)))))
}

// Prints the null terminated string at $a0
func (console *Console) printString(ctx emulator.SyscallContext) error {
	address := argument(ctx)
	var sb strings.Builder
	for i := 0; i < MAX_STRING_LENGTH; i++ {
		b, err := ctx.LoadByte(address + uint32(i))
		if err != nil {
			return fmt.Errorf("print string at 0x%08x: %w", address, err)
		}
		if b == 0 {
			return console.write(sb.String())
		}
		sb.WriteByte(b)
	}
	return fmt.Errorf("print string at 0x%08x: %w", address, ErrUnterminatedString)
}

// Reads a line and stores the integer it contains in $v0
func (console *Console) readInt(ctx emulator.SyscallContext) error {
	console.mu.Lock()
	line, err := console.in.ReadString('\n')
	console.mu.Unlock()
	if err != nil && (err != io.EOF || line == "") {
		return fmt.Errorf("read int: %w", err)
	}

	val, err := strconv.ParseInt(strings.TrimSpace(line), 0, 32)
	if err != nil {
		return fmt.Errorf("read int: %w", err)
	}
	ctx.Registers().General(emulator.REGISTER_V0).SetValue(uint32(int32(val)))
	return nil
}

func exit(ctx emulator.SyscallContext) error {
	ctx.Exit(0)
	return nil
}

// exits with the code in $a0
func exit2(ctx emulator.SyscallContext) error {
	ctx.Exit(int(int32(argument(ctx))))
	return nil
}
