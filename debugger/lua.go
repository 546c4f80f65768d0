package debugger

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/gbadbg/emu"
)

// RunLua runs a Lua debugger script against ctrl. The script sees these
// globals:
//
//	brk(addr)     insert a breakpoint
//	rbrk(offset)  insert a breakpoint relative to the base address
//	delete(addr)  remove a breakpoint
//	value(addr)   read a word
//	reg(n)        read register n; reg(15) is the next fetch address
//	pc()          the next fetch address
//	run()         run until the controller halts; returns the stop reason
//	step()        execute one instruction; returns the stop reason
//	print(...)    show the processor state, or print the arguments
//	log(on)       turn step logging on or off
//	quit()        end the session
//
// The script ends early once quit is called.
func RunLua(ctrl *Controller, src string) error {
	L := lua.NewState()
	defer L.Close()

	b := &luaBindings{ctrl: ctrl}
	for name, fn := range map[string]lua.LGFunction{
		"brk":    b.brk,
		"rbrk":   b.rbrk,
		"delete": b.delete,
		"value":  b.value,
		"reg":    b.reg,
		"pc":     b.pc,
		"run":    b.run,
		"step":   b.step,
		"print":  b.print,
		"log":    b.log,
		"quit":   b.quit,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	if err := L.DoString(src); err != nil {
		if ctrl.State() == Quit && strings.Contains(err.Error(), errLuaQuit) {
			return nil
		}
		return fmt.Errorf("lua script: %w", err)
	}
	return nil
}

const errLuaQuit = "debugger quit"

type luaBindings struct {
	ctrl *Controller
}

func checkAddr(L *lua.LState, n int) uint32 {
	v := L.CheckNumber(n)
	if v < 0 || v > 0xFFFFFFFF {
		L.ArgError(n, "address out of range")
	}
	return uint32(v)
}

func (b *luaBindings) apply(L *lua.LState, d Directive) {
	if err := b.ctrl.Apply(d); err != nil {
		L.RaiseError("%v", err)
	}
}

func (b *luaBindings) brk(L *lua.LState) int {
	b.apply(L, Directive{Kind: KindBreak, Addr: checkAddr(L, 1)})
	return 0
}

func (b *luaBindings) rbrk(L *lua.LState) int {
	b.apply(L, Directive{Kind: KindRBreak, Addr: checkAddr(L, 1)})
	return 0
}

func (b *luaBindings) delete(L *lua.LState) int {
	b.apply(L, Directive{Kind: KindDelete, Addr: checkAddr(L, 1)})
	return 0
}

func (b *luaBindings) value(L *lua.LState) int {
	addr := checkAddr(L, 1)
	v, err := b.ctrl.emu.Memory().Read(addr, emu.WidthWord)
	if err != nil {
		L.RaiseError("value at %08x: %v", addr, err)
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (b *luaBindings) reg(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 0 || n > 15 {
		L.ArgError(1, "register must be 0-15")
	}
	L.Push(lua.LNumber(b.ctrl.emu.State().R[n]))
	return 1
}

func (b *luaBindings) pc(L *lua.LState) int {
	L.Push(lua.LNumber(b.ctrl.emu.RegFile().PC()))
	return 1
}

func (b *luaBindings) run(L *lua.LState) int {
	b.apply(L, Directive{Kind: KindRun})
	b.ctrl.RunToHalt()
	L.Push(lua.LString(b.ctrl.LastStop().Reason.String()))
	return 1
}

func (b *luaBindings) step(L *lua.LState) int {
	b.apply(L, Directive{Kind: KindNext})
	b.ctrl.RunToHalt()
	L.Push(lua.LString(b.ctrl.LastStop().Reason.String()))
	return 1
}

func (b *luaBindings) print(L *lua.LState) int {
	top := L.GetTop()
	if top == 0 {
		b.apply(L, Directive{Kind: KindPrint})
		return 0
	}

	parts := make([]string, top)
	for i := 1; i <= top; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	b.ctrl.printf("%s\n", strings.Join(parts, "\t"))
	return 0
}

func (b *luaBindings) log(L *lua.LState) int {
	kind := KindLogOff
	if L.CheckBool(1) {
		kind = KindLogOn
	}
	b.apply(L, Directive{Kind: kind})
	return 0
}

func (b *luaBindings) quit(L *lua.LState) int {
	b.apply(L, Directive{Kind: KindQuit})
	L.RaiseError(errLuaQuit)
	return 0
}
