package debugger

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/prefixtree/v2"
)

// Kind identifies a directive.
type Kind int

// Directive kinds.
const (
	KindNone Kind = iota // blank or comment line
	KindBreak
	KindRBreak
	KindDelete
	KindValue
	KindPrint
	KindLogOn
	KindLogOff
	KindRun
	KindNext
	KindHalt
	KindQuit
	KindList
	KindDump
)

type argKind int

const (
	argNone argKind = iota
	argAddr
	argPath
)

type command struct {
	name string
	kind Kind
	arg  argKind
	help string
}

var commands = []command{
	{name: "break", kind: KindBreak, arg: argAddr, help: "insert a breakpoint at an absolute address"},
	{name: "rbreak", kind: KindRBreak, arg: argAddr, help: "insert a breakpoint relative to the base address"},
	{name: "delete", kind: KindDelete, arg: argAddr, help: "remove a breakpoint"},
	{name: "value", kind: KindValue, arg: argAddr, help: "show the word at an address"},
	{name: "print", kind: KindPrint, help: "show the processor state"},
	{name: "logon", kind: KindLogOn, help: "log every step"},
	{name: "logoff", kind: KindLogOff, help: "stop logging steps"},
	{name: "run", kind: KindRun, help: "run until a breakpoint"},
	{name: "next", kind: KindNext, help: "execute one instruction"},
	{name: "halt", kind: KindHalt, help: "stop a run"},
	{name: "quit", kind: KindQuit, help: "end the session"},
	{name: "list", kind: KindList, help: "list breakpoints"},
	{name: "dump", kind: KindDump, arg: argPath, help: "write the processor state as a DOT graph"},
}

// aliases take precedence over prefix matching.
var aliases = map[string]string{
	"b":    "break",
	"rb":   "rbreak",
	"d":    "delete",
	"v":    "value",
	"p":    "print",
	"r":    "run",
	"n":    "next",
	"h":    "halt",
	"q":    "quit",
	"exit": "quit",
	"l":    "list",
}

var commandTree = func() *prefixtree.Tree[*command] {
	t := prefixtree.New[*command]()
	for i := range commands {
		t.Add(commands[i].name, &commands[i])
	}
	return t
}()

func (k Kind) String() string {
	for _, c := range commands {
		if c.kind == k {
			return c.name
		}
	}
	return "none"
}

// Directive is one parsed debugger command.
type Directive struct {
	Kind Kind

	// Addr is the address or offset argument.
	Addr uint32

	// Path is the file argument of dump.
	Path string

	// Text is the line the directive was parsed from.
	Text string
}

// ParseError reports a line that is not a valid directive.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Line, e.Reason)
}

// Parse reads one directive. Blank lines and lines starting with # parse
// to a KindNone directive.
func Parse(line string) (Directive, error) {
	text := strings.TrimSpace(line)
	if text == "" || strings.HasPrefix(text, "#") {
		return Directive{Kind: KindNone, Text: text}, nil
	}

	fields := strings.Fields(text)
	cmd, err := lookup(strings.ToLower(fields[0]))
	if err != nil {
		return Directive{}, &ParseError{Line: text, Reason: err.Error()}
	}

	d := Directive{Kind: cmd.kind, Text: text}
	args := fields[1:]

	switch cmd.arg {
	case argNone:
		if len(args) != 0 {
			return Directive{}, &ParseError{Line: text, Reason: fmt.Sprintf("%s takes no argument", cmd.name)}
		}
	case argAddr:
		if len(args) != 1 {
			return Directive{}, &ParseError{Line: text, Reason: fmt.Sprintf("%s needs one hex address", cmd.name)}
		}
		addr, err := ParseHex(args[0])
		if err != nil {
			return Directive{}, &ParseError{Line: text, Reason: err.Error()}
		}
		d.Addr = addr
	case argPath:
		if len(args) != 1 {
			return Directive{}, &ParseError{Line: text, Reason: fmt.Sprintf("%s needs one file path", cmd.name)}
		}
		d.Path = args[0]
	}

	return d, nil
}

func lookup(word string) (*command, error) {
	if name, ok := aliases[word]; ok {
		word = name
	}

	cmd, err := commandTree.FindValue(word)
	switch err {
	case nil:
		return cmd, nil
	case prefixtree.ErrPrefixAmbiguous:
		return nil, fmt.Errorf("ambiguous command %q", word)
	default:
		return nil, fmt.Errorf("unknown command %q", word)
	}
}

// ParseHex reads a 32-bit hex number with an optional 0x or $ prefix.
func ParseHex(s string) (uint32, error) {
	digits := s
	switch {
	case strings.HasPrefix(digits, "0x"), strings.HasPrefix(digits, "0X"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "$"):
		digits = digits[1:]
	}

	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q", s)
	}
	return uint32(v), nil
}

// Help lists the directives and their aliases.
func Help() string {
	byName := map[string][]string{}
	for alias, name := range aliases {
		byName[name] = append(byName[name], alias)
	}

	var b strings.Builder
	for _, c := range commands {
		names := c.name
		if a := byName[c.name]; len(a) > 0 {
			slices.Sort(a)
			names += " (" + strings.Join(a, ", ") + ")"
		}
		fmt.Fprintf(&b, "%-22s %s\n", names, c.help)
	}
	return b.String()
}
