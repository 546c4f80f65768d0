// Package debugger drives an emulator from debugger directives: it keeps
// the breakpoint set and the run state, and reports where and why
// execution stopped.
package debugger

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/logger"
)

// RunState is the state of the debugger run loop.
type RunState int

// Run states.
const (
	Halted RunState = iota
	Running
	SingleStepping
	Quit
)

func (s RunState) String() string {
	switch s {
	case Halted:
		return "halted"
	case Running:
		return "running"
	case SingleStepping:
		return "stepping"
	case Quit:
		return "quit"
	}
	return "unknown"
}

// event drives run state transitions.
type event int

const (
	eventRun event = iota
	eventNext
	eventHalt
	eventQuit
	eventStop // a step finished a single step or ended a run
)

// transitions lists every legal state change. Events missing from a
// state's row leave the state unchanged.
var transitions = map[RunState]map[event]RunState{
	Halted: {
		eventRun:  Running,
		eventNext: SingleStepping,
		eventQuit: Quit,
	},
	Running: {
		eventNext: SingleStepping,
		eventHalt: Halted,
		eventQuit: Quit,
		eventStop: Halted,
	},
	SingleStepping: {
		eventRun:  Running,
		eventHalt: Halted,
		eventQuit: Quit,
		eventStop: Halted,
	},
	Quit: {},
}

// StopReason says why the run loop halted.
type StopReason int

// Stop reasons.
const (
	StopNone StopReason = iota
	StopBreakpoint
	StopStepped
	StopHalted
	StopFault
	StopUndefined
	StopBudget
	StopQuit
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopBreakpoint:
		return "breakpoint"
	case StopStepped:
		return "stepped"
	case StopHalted:
		return "halted"
	case StopFault:
		return "fault"
	case StopUndefined:
		return "undefined instruction"
	case StopBudget:
		return "step budget"
	case StopQuit:
		return "quit"
	}
	return "unknown"
}

// Stop describes the most recent halt.
type Stop struct {
	Reason StopReason

	// Addr is the PC for a breakpoint or budget stop and the instruction
	// address otherwise.
	Addr uint32

	// Err is the fault for StopFault.
	Err error
}

func (s Stop) String() string {
	switch s.Reason {
	case StopBreakpoint:
		return fmt.Sprintf("break on addr %08x", s.Addr)
	case StopFault:
		return fmt.Sprintf("fault at %08x: %v", s.Addr, s.Err)
	case StopUndefined:
		return fmt.Sprintf("undefined instruction at %08x", s.Addr)
	case StopBudget:
		return fmt.Sprintf("step budget exhausted at %08x", s.Addr)
	}
	return fmt.Sprintf("%s at %08x", s.Reason, s.Addr)
}

// Controller applies directives to an emulator and drives it one step
// per Tick.
type Controller struct {
	emu *emu.Emulator
	out io.Writer
	log *logger.Logger

	base   uint32
	budget uint64

	breakpoints map[uint32]struct{}
	state       RunState
	logging     bool
	lastStop    Stop

	// resuming skips the breakpoint check for the first step of a run
	// that starts on the breakpoint it last stopped at.
	resuming bool
	runSteps uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithOutput sets where directive output goes. The default is stdout.
func WithOutput(w io.Writer) ControllerOption {
	return func(c *Controller) {
		c.out = w
	}
}

// WithLogger sets the session log.
func WithLogger(l *logger.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l
	}
}

// WithBase sets the address rbreak offsets are relative to.
func WithBase(base uint32) ControllerOption {
	return func(c *Controller) {
		c.base = base
	}
}

// WithStepBudget halts every run after n steps. 0 means no budget.
func WithStepBudget(n uint64) ControllerOption {
	return func(c *Controller) {
		c.budget = n
	}
}

// WithLogging sets whether steps are logged from the start.
func WithLogging(on bool) ControllerOption {
	return func(c *Controller) {
		c.logging = on
	}
}

// NewController creates a halted controller for e.
func NewController(e *emu.Emulator, opts ...ControllerOption) *Controller {
	c := &Controller{
		emu:         e,
		out:         os.Stdout,
		base:        emu.ROMBase,
		breakpoints: make(map[uint32]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.NewLogger(256)
	}

	e.AcceptHook(&stepTracer{ctrl: c})

	return c
}

// Emulator returns the controlled emulator.
func (c *Controller) Emulator() *emu.Emulator {
	return c.emu
}

// Logger returns the session log.
func (c *Controller) Logger() *logger.Logger {
	return c.log
}

// State returns the run state.
func (c *Controller) State() RunState {
	return c.state
}

// Logging reports whether steps are being logged.
func (c *Controller) Logging() bool {
	return c.logging
}

// AllowLogging implements logger.Permission for step logging.
func (c *Controller) AllowLogging() bool {
	return c.logging
}

// Base returns the address rbreak offsets are relative to.
func (c *Controller) Base() uint32 {
	return c.base
}

// LastStop returns the most recent halt.
func (c *Controller) LastStop() Stop {
	return c.lastStop
}

// Breakpoints returns the breakpoint addresses in ascending order.
func (c *Controller) Breakpoints() []uint32 {
	return slices.Sorted(maps.Keys(c.breakpoints))
}

// HasBreakpoint reports whether addr is in the breakpoint set.
func (c *Controller) HasBreakpoint(addr uint32) bool {
	_, ok := c.breakpoints[addr]
	return ok
}

// Exec parses and applies one line.
func (c *Controller) Exec(line string) error {
	d, err := Parse(line)
	if err != nil {
		return err
	}
	return c.Apply(d)
}

// Apply applies one directive. Once the controller has quit every
// directive is ignored.
func (c *Controller) Apply(d Directive) error {
	if c.state == Quit {
		return nil
	}

	switch d.Kind {
	case KindNone:
	case KindBreak:
		c.insertBreakpoint(d.Addr)
	case KindRBreak:
		c.insertBreakpoint(c.base + d.Addr)
	case KindDelete:
		if !c.HasBreakpoint(d.Addr) {
			return fmt.Errorf("no breakpoint at %08x", d.Addr)
		}
		delete(c.breakpoints, d.Addr)
		c.printf("breakpoint removed at %08x\n", d.Addr)
	case KindValue:
		v, err := c.emu.Memory().Read(d.Addr, emu.WidthWord)
		if err != nil {
			return fmt.Errorf("value at %08x: %w", d.Addr, err)
		}
		c.printf("value found %08x\n", v)
	case KindPrint:
		c.printState()
	case KindLogOn:
		c.logging = true
	case KindLogOff:
		c.logging = false
	case KindList:
		c.listBreakpoints()
	case KindDump:
		if err := c.Dump(d.Path); err != nil {
			return err
		}
		c.printf("state written to %s\n", d.Path)
	case KindRun:
		c.fire(eventRun)
	case KindNext:
		c.fire(eventNext)
	case KindHalt:
		prev := c.state
		c.fire(eventHalt)
		if c.state != prev {
			c.report(Stop{Reason: StopHalted, Addr: c.emu.RegFile().PC()})
		}
	case KindQuit:
		c.fire(eventQuit)
		c.lastStop = Stop{Reason: StopQuit, Addr: c.emu.RegFile().PC()}
	default:
		return fmt.Errorf("unsupported directive %s", d.Kind)
	}
	return nil
}

// Tick advances the run loop by at most one step. It reports whether the
// CPU was stepped.
func (c *Controller) Tick() bool {
	switch c.state {
	case SingleStepping:
		result := c.emu.Step()
		if !c.checkResult(result) {
			c.halt(Stop{Reason: StopStepped, Addr: result.Addr})
		}
		return true

	case Running:
		pc := c.emu.RegFile().PC()
		if !c.resuming && c.HasBreakpoint(pc) {
			c.halt(Stop{Reason: StopBreakpoint, Addr: pc})
			return false
		}
		if c.budget > 0 && c.runSteps >= c.budget {
			c.halt(Stop{Reason: StopBudget, Addr: pc})
			return false
		}

		c.resuming = false
		c.runSteps++
		c.checkResult(c.emu.Step())
		return true
	}

	return false
}

// RunToHalt ticks until the controller is neither running nor stepping.
func (c *Controller) RunToHalt() {
	for c.state == Running || c.state == SingleStepping {
		c.Tick()
	}
}

// checkResult halts the run for steps that did not complete normally and
// reports whether it did so.
func (c *Controller) checkResult(result emu.StepResult) bool {
	switch result.Status {
	case emu.StepFaulted:
		c.halt(Stop{Reason: StopFault, Addr: result.Addr, Err: result.Err})
	case emu.StepUndefined:
		c.halt(Stop{Reason: StopUndefined, Addr: result.Addr})
	case emu.StepLimited:
		c.halt(Stop{Reason: StopBudget, Addr: result.Addr})
	default:
		return false
	}
	return true
}

func (c *Controller) fire(ev event) {
	next, ok := transitions[c.state][ev]
	if !ok {
		return
	}
	if next == Running && c.state != Running {
		pc := c.emu.RegFile().PC()
		c.resuming = c.lastStop.Reason == StopBreakpoint && c.lastStop.Addr == pc
		c.runSteps = 0
	}
	c.state = next
}

func (c *Controller) halt(stop Stop) {
	c.fire(eventStop)
	c.report(stop)
}

func (c *Controller) report(stop Stop) {
	c.lastStop = stop

	if stop.Reason == StopStepped {
		return
	}
	c.printf("%s\n", stop)
	c.log.Log(logger.Allow, "debugger", stop.String())
}

func (c *Controller) insertBreakpoint(addr uint32) {
	c.breakpoints[addr] = struct{}{}
	c.printf("breakpoint set at %08x\n", addr)
}

func (c *Controller) listBreakpoints() {
	bps := c.Breakpoints()
	if len(bps) == 0 {
		c.printf("no breakpoints\n")
		return
	}
	for i, addr := range bps {
		c.printf("%2d  %08x\n", i, addr)
	}
}

func (c *Controller) printState() {
	c.printf("%s\n", c.emu.State())
	if bus, ok := c.emu.Memory().(*emu.Bus); ok {
		c.printf("display %s\n", bus.DisplayControl())
	}
	c.printf("run %s, logging %s\n", c.state, onOff(c.logging))
}

func (c *Controller) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// stepTracer prints every completed step while logging is on.
type stepTracer struct {
	ctrl *Controller
}

func (t *stepTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != emu.HookPosAfterStep || !t.ctrl.logging {
		return
	}

	result, ok := ctx.Item.(emu.StepResult)
	if !ok || result.Inst == nil {
		return
	}

	line := fmt.Sprintf("%08x  %-28s %s", result.Addr, result.Inst.Disasm(result.Addr), result.Status)
	t.ctrl.printf("%s\n%s\n", line, t.ctrl.emu.State())
	t.ctrl.log.Log(t.ctrl, "step", line)
}
