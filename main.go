// Package main provides the entry point for pipetrace.
// pipetrace decodes and displays the per-cycle state of a 5-stage RV32I
// pipeline simulator.
//
// For the full CLI, use: go run ./cmd/pipetrace
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("pipetrace - RV32I pipeline trace viewer")
	fmt.Println("")
	fmt.Println("Usage: pipetrace [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -addr      Simulator address (default localhost:8888)")
	fmt.Println("  -config    Path to configuration JSON file")
	fmt.Println("  -replay    Replay a recorded trace")
	fmt.Println("  -record    Record received snapshots")
	fmt.Println("  -until     Run until a breakpoint, e.g. wb_pc=0x40")
	fmt.Println("  -timeline  Print the pipeline diagram of a replayed trace")
	fmt.Println("  -i         Interactive mode")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/pipetrace' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/pipetrace' instead.")
	}
}
