// Command tinyc is the CLI driver for the embeddable interpreter
// (spec.md §6 "CLI surface"). It is a thin wrapper: all of the actual
// argument parsing and interpreter wiring lives in pkg/climain, shared
// with the repository's root command since Go forbids one package main
// importing another.
package main

import (
	"os"

	"tinyc/pkg/climain"
)

func main() {
	os.Exit(climain.Main(os.Args[1:], os.Stdout, os.Stderr))
}
