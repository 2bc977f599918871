package sysbundle

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gaeqs/gojams/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, arch emulator.Architecture, source string, registry emulator.Registry) *emulator.Simulation {
	t.Helper()
	program, err := emulator.AssembleProgram(registry.Instructions, emulator.NewRegisterSet(), source)
	require.NoError(t, err)
	sim, err := emulator.NewSimulation(arch, program, nil, registry)
	require.NoError(t, err)
	// failures are checked through sim.Err
	_ = sim.ExecuteAll(context.Background())
	require.Equal(t, emulator.STATE_FINISHED, sim.State())
	return sim
}

func consoleRegistry(in string) (emulator.Registry, *bytes.Buffer) {
	var out bytes.Buffer
	registry := emulator.DefaultRegistry()
	NewConsole(strings.NewReader(in), &out).Register(registry.Syscalls)
	return registry, &out
}

func TestConsoleSyscalls(t *testing.T) {
	tests := []struct {
		name   string
		source string
		input  string
		output string
	}{
		{"print int", "li $a0, -42\nli $v0, 1\nsyscall", "", "-42"},
		{"print char", "li $a0, 0x41\nli $v0, 11\nsyscall", "", "A"},
		{"print float", "li $t0, 0x3fc00000\nmtc1 $t0, $f12\nli $v0, 2\nsyscall", "", "1.5"},
		{"print string", "la $a0, msg\nli $v0, 4\nsyscall\n.data\nmsg: .word 0x6c6c6568, 0x006f", "", "hello"},
		{"echo", "li $v0, 5\nsyscall\nmove $a0, $v0\nli $v0, 1\nsyscall", " 123\n", "123"},
		{"echo hex", "li $v0, 5\nsyscall\nmove $a0, $v0\nli $v0, 1\nsyscall", "0x10", "16"},
	}
	for _, arch := range []emulator.Architecture{emulator.ARCH_SINGLE_CYCLE, emulator.ARCH_PIPELINED} {
		for _, test := range tests {
			t.Run(arch.String()+"/"+test.name, func(t *testing.T) {
				registry, out := consoleRegistry(test.input)
				sim := run(t, arch, test.source, registry)
				require.NoError(t, sim.Err())
				assert.Equal(t, test.output, out.String())
			})
		}
	}
}

func TestExitSyscalls(t *testing.T) {
	registry, _ := consoleRegistry("")
	sim := run(t, emulator.ARCH_MULTI_CYCLE, "li $a0, 7\nli $v0, 17\nsyscall\nli $t0, 1", registry)
	code, exited := sim.ExitCode()
	assert.True(t, exited)
	assert.Equal(t, 7, code)
	v, _ := sim.Registers.Get("$t0")
	assert.Zero(t, v.Value())

	sim = run(t, emulator.ARCH_SINGLE_CYCLE, "li $v0, 10\nsyscall\nli $t0, 1", registry)
	code, exited = sim.ExitCode()
	assert.True(t, exited)
	assert.Zero(t, code)
}

func TestConsoleErrors(t *testing.T) {
	registry, _ := consoleRegistry("twelve\n")
	sim := run(t, emulator.ARCH_SINGLE_CYCLE, "li $v0, 5\nsyscall", registry)
	assert.ErrorContains(t, sim.Err(), "read int")

	registry, _ = consoleRegistry("")
	sim = run(t, emulator.ARCH_SINGLE_CYCLE, "li $v0, 5\nsyscall", registry)
	assert.Error(t, sim.Err())

	registry, _ = consoleRegistry("")
	sim = run(t, emulator.ARCH_SINGLE_CYCLE, "li $a0, 0\nli $v0, 4\nsyscall", registry)
	assert.ErrorIs(t, sim.Err(), emulator.ErrOutOfBounds)
}

const doubler = `
syscalls = {
  [20] = function(ctx)
    ctx.setreg("$v0", ctx.reg("$a0") * 2)
  end,
  [21] = function(ctx)
    ctx.store(ctx.reg("$gp"), ctx.load(ctx.reg("$gp")) + 1)
    ctx.print("at " .. ctx.address)
  end,
  [22] = function(ctx)
    ctx.exit(ctx.reg("$a0"))
  end,
  [23] = function(ctx)
    error("boom")
  end,
}
`

func TestLuaSyscalls(t *testing.T) {
	var out bytes.Buffer
	registry := emulator.DefaultRegistry()
	bundle, err := LoadLuaSyscalls(registry.Syscalls, strings.NewReader(doubler), "doubler.lua", &out)
	require.NoError(t, err)
	defer bundle.Close()
	assert.ElementsMatch(t, []uint32{20, 21, 22, 23}, bundle.Codes())

	source := `
	li $a0, 21
	li $v0, 20
	syscall
	move $t0, $v0
	li $v0, 21
	syscall
	syscall
	li $a0, 4
	li $v0, 22
	syscall
`
	sim := run(t, emulator.ARCH_PIPELINED, source, registry)
	require.NoError(t, sim.Err())

	t0, _ := sim.Registers.Get("$t0")
	assert.Equal(t, uint32(42), t0.Value())
	stored, err := sim.Memory.GetWord(emulator.GLOBAL_POINTER)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stored)
	assert.Equal(t, "at 4194336at 4194340", out.String())

	code, exited := sim.ExitCode()
	assert.True(t, exited)
	assert.Equal(t, 4, code)

	// memory written from Lua is undone like any other store
	for sim.UndoAvailable() > 0 {
		require.NoError(t, sim.UndoStep())
	}
	stored, err = sim.Memory.GetWord(emulator.GLOBAL_POINTER)
	require.NoError(t, err)
	assert.Zero(t, stored)

	sim = run(t, emulator.ARCH_SINGLE_CYCLE, "li $v0, 23\nsyscall", registry)
	assert.ErrorContains(t, sim.Err(), "boom")
}

func TestLuaScriptErrors(t *testing.T) {
	scripts := []string{
		"syscalls = ",
		"error('failed')",
		"handlers = {}",
		"syscalls = { [1] = 5 }",
		"syscalls = { print = function() end }",
	}
	for _, script := range scripts {
		_, err := LoadLuaSyscalls(emulator.NewSyscallTable(), strings.NewReader(script), "bad.lua", &bytes.Buffer{})
		assert.Error(t, err, script)
	}
}
