package debugger

import (
	"fmt"
	"io"
	"os"

	"github.com/bradleyjkemp/memviz"

	"github.com/sarchlab/gbadbg/emu"
)

// dumpState is the graph root written by dump.
type dumpState struct {
	State       emu.Snapshot
	Display     string
	Breakpoints []uint32
	Run         string
	Logging     bool
	LastStop    string
}

// Dump writes the processor state and the breakpoint set to path as a
// Graphviz DOT graph.
func (c *Controller) Dump(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}

	c.WriteDump(f)

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write dump file: %w", err)
	}
	return nil
}

// WriteDump writes the DOT graph to w.
func (c *Controller) WriteDump(w io.Writer) {
	d := &dumpState{
		State:       c.emu.State(),
		Breakpoints: c.Breakpoints(),
		Run:         c.state.String(),
		Logging:     c.logging,
		LastStop:    c.lastStop.String(),
	}
	if bus, ok := c.emu.Memory().(*emu.Bus); ok {
		d.Display = bus.DisplayControl().String()
	}
	memviz.Map(w, d)
}
