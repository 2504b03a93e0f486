// Package main provides the entry point for thumbm0.
// thumbm0 assembles and disassembles ARM Thumb code for Cortex-M0 class
// cores.
//
// For the full CLI, use: go run ./cmd/thumbm0
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("thumbm0 - ARM Thumb assembler and disassembler")
	fmt.Println("")
	fmt.Println("Usage: thumbm0 [options] asm <source.s>")
	fmt.Println("       thumbm0 [options] dis <program.elf|image.bin>")
	fmt.Println("       thumbm0 [options] table")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to configuration JSON file")
	fmt.Println("  -base      Load address of raw images")
	fmt.Println("  -addr      Show address and halfword columns")
	fmt.Println("  -fix       Rewrite branch targets as labels")
	fmt.Println("  -labels    Resolve labels when assembling")
	fmt.Println("  -o         Output file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/thumbm0' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/thumbm0' instead.")
	}
}
