package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/gbadbg/logger"
)

// Source supplies directive lines to a session.
type Source interface {
	// Next blocks until a line is available. It reports false at the end
	// of input.
	Next() (string, bool)
}

// Poller is a Source that can also be checked without blocking while the
// controller is running.
type Poller interface {
	Source
	Poll() (string, bool)
}

// LineReader reads one line at a time. *term.Terminal satisfies it.
type LineReader interface {
	ReadLine() (string, error)
}

// ScriptSource reads directives from a script in file order.
type ScriptSource struct {
	scanner *bufio.Scanner
}

// NewScriptSource creates a source over r.
func NewScriptSource(r io.Reader) *ScriptSource {
	return &ScriptSource{scanner: bufio.NewScanner(r)}
}

// Next returns the next line of the script.
func (s *ScriptSource) Next() (string, bool) {
	if !s.scanner.Scan() {
		return "", false
	}
	return s.scanner.Text(), true
}

// ReadLine implements LineReader.
func (s *ScriptSource) ReadLine() (string, error) {
	line, ok := s.Next()
	if !ok {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return line, nil
}

// AsyncSource reads lines on a background goroutine so that halt and quit
// can reach the session while the controller is running.
type AsyncSource struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

// NewAsyncSource starts reading from r.
func NewAsyncSource(r LineReader) *AsyncSource {
	s := &AsyncSource{
		lines: make(chan string, 16),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(s.lines)
		for {
			line, err := r.ReadLine()
			if line != "" || err == nil {
				select {
				case s.lines <- line:
				case <-s.done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return s
}

// Close stops the reader goroutine once its current ReadLine returns.
// Lines already queued are dropped.
func (s *AsyncSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Next blocks until a line arrives or the input ends.
func (s *AsyncSource) Next() (string, bool) {
	line, ok := <-s.lines
	return line, ok
}

// Poll returns a line if one is waiting.
func (s *AsyncSource) Poll() (string, bool) {
	select {
	case line, ok := <-s.lines:
		return line, ok
	default:
		return "", false
	}
}

// Session feeds directives from a source to a controller and runs the
// controller between them.
type Session struct {
	ctrl    *Controller
	src     Source
	out     io.Writer
	pending []Directive
}

// NewSession creates a session. Errors are reported to the controller's
// output.
func NewSession(ctrl *Controller, src Source) *Session {
	return &Session{ctrl: ctrl, src: src, out: ctrl.out}
}

// Run applies directives until the controller quits or the input ends
// while the controller is halted. A source that is an io.Closer is closed
// on return.
func (s *Session) Run() {
	if c, ok := s.src.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	for s.ctrl.State() != Quit {
		switch s.ctrl.State() {
		case Running, SingleStepping:
			s.poll()
			s.ctrl.Tick()
			continue
		}

		if len(s.pending) > 0 {
			d := s.pending[0]
			s.pending = s.pending[1:]
			s.apply(d)
			continue
		}

		line, ok := s.src.Next()
		if !ok {
			return
		}
		s.exec(line)
	}
}

// poll lets halt and quit interrupt a run. Other directives wait until the
// controller halts.
func (s *Session) poll() {
	p, ok := s.src.(Poller)
	if !ok {
		return
	}

	line, ok := p.Poll()
	if !ok {
		return
	}

	d, err := Parse(line)
	if err != nil {
		s.report(err)
		return
	}

	switch d.Kind {
	case KindHalt, KindQuit:
		s.apply(d)
	case KindNone:
	default:
		s.pending = append(s.pending, d)
	}
}

func (s *Session) exec(line string) {
	d, err := Parse(line)
	if err != nil {
		s.report(err)
		return
	}
	s.apply(d)
}

func (s *Session) apply(d Directive) {
	if err := s.ctrl.Apply(d); err != nil {
		s.report(err)
	}
}

func (s *Session) report(err error) {
	var perr *ParseError
	if errors.As(err, &perr) {
		s.ctrl.log.Log(logger.Allow, "parse", perr.Error())
	} else {
		s.ctrl.log.Log(logger.Allow, "debugger", err.Error())
	}
	_, _ = fmt.Fprintf(s.out, "error: %v\n", err)
}
