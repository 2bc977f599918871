package sysbundle

import (
	"fmt"
	"io"
	"sync"

	"github.com/gaeqs/gojams/emulator"
	lua "github.com/yuin/gopher-lua"
)

// Syscall handlers written in Lua. The script defines a global table
// `syscalls` mapping codes to functions receiving a context table:
//
//	syscalls = {
//	  [20] = function(ctx)
//	    ctx.setreg("$v0", ctx.reg("$a0") * 2)
//	  end,
//	}
//
// The context provides reg, setreg, load, store, loadbyte, storebyte,
// print and exit. One Lua state serves every handler, calls are serialized
type LuaSyscalls struct {
	mu    sync.Mutex
	state *lua.LState
	out   io.Writer
	codes []uint32
}

type luaSyscall struct {
	bundle *LuaSyscalls
	code   uint32
	fn     *lua.LFunction
}

// Runs the script read from `r` and binds every handler of its syscalls
// table into `table`. `print` writes to `out`
func LoadLuaSyscalls(table *emulator.SyscallTable, r io.Reader, name string, out io.Writer) (*LuaSyscalls, error) {
	L := lua.NewState()
	bundle := &LuaSyscalls{state: L, out: out}

	fn, err := L.Load(r, name)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	handlers, ok := L.GetGlobal("syscalls").(*lua.LTable)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%s: no syscalls table defined", name)
	}

	var bindErr error
	bound := make(map[uint32]*lua.LFunction)
	handlers.ForEach(func(key, value lua.LValue) {
		code, isNumber := key.(lua.LNumber)
		handler, isFunction := value.(*lua.LFunction)
		if !isNumber || !isFunction || code < 0 {
			if bindErr == nil {
				bindErr = fmt.Errorf("%s: syscalls[%v] must map a code to a function", name, key)
			}
			return
		}
		bound[uint32(code)] = handler
	})
	if bindErr != nil {
		L.Close()
		return nil, bindErr
	}

	for code, handler := range bound {
		table.Bind(code, &luaSyscall{bundle: bundle, code: code, fn: handler})
		bundle.codes = append(bundle.codes, code)
	}
	return bundle, nil
}

// Returns the codes bound by the script
func (bundle *LuaSyscalls) Codes() []uint32 {
	return bundle.codes
}

func (bundle *LuaSyscalls) Close() {
	bundle.mu.Lock()
	defer bundle.mu.Unlock()
	bundle.state.Close()
}

func (call *luaSyscall) Execute(ctx emulator.SyscallContext) error {
	bundle := call.bundle
	bundle.mu.Lock()
	defer bundle.mu.Unlock()

	L := bundle.state
	err := L.CallByParam(lua.P{
		Fn:      call.fn,
		NRet:    0,
		Protect: true,
	}, bundle.context(ctx))
	if err != nil {
		return fmt.Errorf("lua syscall %d: %w", call.code, err)
	}
	return nil
}

func register(L *lua.LState, ctx emulator.SyscallContext) *emulator.Register {
	name := L.CheckString(1)
	reg, ok := ctx.Registers().Get(name)
	if !ok {
		if reg, ok = ctx.Registers().GetCop1(name); !ok {
			L.ArgError(1, "unknown register "+name)
		}
	}
	return reg
}

func address(L *lua.LState, n int) uint32 {
	return uint32(L.CheckInt64(n))
}

// Builds the table handed to a handler. Memory errors are raised as Lua
// errors and surface as the syscall's error
func (bundle *LuaSyscalls) context(ctx emulator.SyscallContext) *lua.LTable {
	L := bundle.state
	t := L.NewTable()
	fns := map[string]lua.LGFunction{
		"reg": func(L *lua.LState) int {
			L.Push(lua.LNumber(register(L, ctx).Value()))
			return 1
		},
		"setreg": func(L *lua.LState) int {
			register(L, ctx).SetValue(uint32(L.CheckInt64(2)))
			return 0
		},
		"load": func(L *lua.LState) int {
			val, err := ctx.LoadWord(address(L, 1))
			if err != nil {
				L.RaiseError("%v", err)
			}
			L.Push(lua.LNumber(val))
			return 1
		},
		"store": func(L *lua.LState) int {
			if err := ctx.StoreWord(address(L, 1), uint32(L.CheckInt64(2))); err != nil {
				L.RaiseError("%v", err)
			}
			return 0
		},
		"loadbyte": func(L *lua.LState) int {
			b, err := ctx.LoadByte(address(L, 1))
			if err != nil {
				L.RaiseError("%v", err)
			}
			L.Push(lua.LNumber(b))
			return 1
		},
		"storebyte": func(L *lua.LState) int {
			if err := ctx.StoreByte(address(L, 1), byte(L.CheckInt(2))); err != nil {
				L.RaiseError("%v", err)
			}
			return 0
		},
		"print": func(L *lua.LState) int {
			if _, err := io.WriteString(bundle.out, L.CheckString(1)); err != nil {
				L.RaiseError("%v", err)
			}
			return 0
		},
		"exit": func(L *lua.LState) int {
			ctx.Exit(L.OptInt(1, 0))
			return 0
		},
	}
	for name, fn := range fns {
		L.SetField(t, name, L.NewFunction(fn))
	}
	L.SetField(t, "address", lua.LNumber(ctx.Address()))
	return t
}
