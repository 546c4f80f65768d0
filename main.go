// Package main provides the entry point for gbadbg.
// gbadbg is an ARM7TDMI emulator and debugger for Game Boy Advance images.
//
// For the full CLI, use: go run ./cmd/gbadbg
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("gbadbg - ARM7TDMI / GBA debugger")
	fmt.Println("")
	fmt.Println("Usage: gbadbg [options] <image>")
	fmt.Println("       gbadbg [options] -demo arm|thumb")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -script     Directive script to run (.lua for a Lua script)")
	fmt.Println("  -config     Path to session configuration JSON file")
	fmt.Println("  -base       Base load address in hex")
	fmt.Println("  -demo       Run a built-in demo: arm or thumb")
	fmt.Println("  -log        Echo the session log to stderr")
	fmt.Println("  -statsview  Serve the runtime stats dashboard on this address")
	fmt.Println("  -trace-io   Log writes to I/O registers")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/gbadbg' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/gbadbg' instead.")
	}
}
