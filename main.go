// Command tinyc (root binary) is the same CLI driver as cmd/tinyc,
// kept at the module root for `go run .`/`go install tinyc` convenience.
// All actual logic lives in pkg/climain.
package main

import (
	"os"

	"tinyc/pkg/climain"
)

func main() {
	os.Exit(climain.Main(os.Args[1:], os.Stdout, os.Stderr))
}
