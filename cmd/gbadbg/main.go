// Package main provides the gbadbg command: an ARM7TDMI debugger for GBA
// images driven by directives, scripts or an interactive prompt.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/sarchlab/akita/v4/sim"
	"golang.org/x/term"

	"github.com/sarchlab/gbadbg/config"
	"github.com/sarchlab/gbadbg/debugger"
	"github.com/sarchlab/gbadbg/demos"
	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/loader"
	"github.com/sarchlab/gbadbg/logger"
)

var (
	scriptPath = flag.String("script", "", "Directive script to run (.lua for a Lua script)")
	configPath = flag.String("config", "", "Path to session configuration JSON file")
	baseAddr   = flag.String("base", "", "Base load address in hex (overrides the config)")
	demoName   = flag.String("demo", "", "Run a built-in demo instead of an image: arm or thumb")
	echoLog    = flag.Bool("log", false, "Echo the session log to stderr")
	statsAddr  = flag.String("statsview", "", "Serve the runtime stats dashboard on this address")
	traceIO    = flag.Bool("trace-io", false, "Log writes to I/O registers")
)

func main() {
	flag.Parse()

	if (flag.NArg() < 1) == (*demoName == "") {
		fmt.Fprintf(os.Stderr, "Usage: gbadbg [options] <image>\n")
		fmt.Fprintf(os.Stderr, "       gbadbg [options] -demo arm|thumb\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogEntries)
	if *echoLog {
		log.SetEcho(os.Stderr)
	}

	bus, err := emu.NewBus(emu.GBARegions(), cfg.BusOptions()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building memory map: %v\n", err)
		return 1
	}
	if *traceIO {
		bus.AcceptHook(&ioTracer{log: log})
	}

	prog, err := loadProgram(cfg.BaseAddress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return 1
	}
	if err := prog.LoadInto(bus); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return 1
	}
	log.Logf(logger.Allow, "loader", "%d bytes, entry 0x%08x", prog.Size(), prog.Entry)

	if *statsAddr != "" {
		launchStatsview(*statsAddr)
	}

	e := emu.NewEmulator(bus, cfg.EmulatorOptions(prog.Entry)...)
	ctrlOpts := []debugger.ControllerOption{
		debugger.WithLogger(log),
		debugger.WithBase(cfg.BaseAddress),
		debugger.WithStepBudget(cfg.StepBudget),
		debugger.WithLogging(cfg.LogSteps),
	}

	if *scriptPath != "" {
		return runScript(debugger.NewController(e, ctrlOpts...), *scriptPath)
	}
	return runInteractive(e, ctrlOpts)
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	if *baseAddr != "" {
		base, err := debugger.ParseHex(*baseAddr)
		if err != nil {
			return nil, fmt.Errorf("-base: %w", err)
		}
		cfg.BaseAddress = base
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadProgram(base uint32) (*loader.Program, error) {
	if *demoName != "" {
		d, ok := demos.ByName(*demoName)
		if !ok {
			return nil, fmt.Errorf("unknown demo %q", *demoName)
		}
		return loader.Raw(d.Image, base), nil
	}
	return loader.Load(flag.Arg(0), base)
}

func runScript(ctrl *debugger.Controller, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading script: %v\n", err)
		return 1
	}

	if strings.HasSuffix(path, ".lua") {
		if err := debugger.RunLua(ctrl, string(data)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	debugger.NewSession(ctrl, debugger.NewScriptSource(strings.NewReader(string(data)))).Run()
	return 0
}

// runInteractive reads directives from stdin. A terminal gets line
// editing; anything else is read line by line.
func runInteractive(e *emu.Emulator, opts []debugger.ControllerOption) int {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		ctrl := debugger.NewController(e, opts...)
		debugger.NewSession(ctrl, debugger.NewAsyncSource(debugger.NewScriptSource(os.Stdin))).Run()
		return 0
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting raw mode: %v\n", err)
		return 1
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "> ")

	ctrl := debugger.NewController(e, append(opts, debugger.WithOutput(t))...)
	fmt.Fprint(t, debugger.Help())
	debugger.NewSession(ctrl, debugger.NewAsyncSource(t)).Run()
	return 0
}

func launchStatsview(addr string) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()
	fmt.Fprintf(os.Stderr, "stats server available at %s/debug/statsview\n", addr)
}

// ioTracer logs every I/O register write.
type ioTracer struct {
	log *logger.Logger
}

func (t *ioTracer) Func(ctx sim.HookCtx) {
	w, ok := ctx.Item.(emu.IOWrite)
	if !ok {
		return
	}

	name := w.Register
	if name == "" {
		name = fmt.Sprintf("0x%08x", w.Addr)
	}
	t.log.Logf(logger.Allow, "io", "%s <- 0x%0*x (%s)", name, 2*int(w.Width), w.Value, w.Width)
}
