// Package climain is the CLI surface shared by the root binary and
// cmd/tinyc (spec.md §6 "CLI surface"): -s, -i, -c, -h, plus a literal
// `-` separating source files from the program's own argv, hand-parsed
// from os.Args the way cmd/console/main.go and cmd/ccompiler/main.go
// read their arguments rather than reaching for a flag framework.
package climain

import (
	"fmt"
	"io"
	"log"
	"os"

	"tinyc/pkg/interp"
	"tinyc/pkg/utils"
)

const licenseText = `tinyc - an embeddable C-subset interpreter

Permission is hereby granted, free of charge, to any person obtaining a
copy of this software to deal in the Software without restriction,
subject to the license terms included with the source distribution.
`

// Options holds the parsed command line.
type Options struct {
	RunWithoutMain bool // -s
	Interactive    bool // -i
	ShowLicense    bool // -c
	ShowHelp       bool // -h
	Files          []string
	ProgramArgs    []string
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tinyc [-s] [-i] [-c] [-h] file.c [file2.c ...] [- prog-arg ...]")
	fmt.Fprintln(w, "  -s  parse and run top-level declarations but do not call main")
	fmt.Fprintln(w, "  -i  interactive mode: read a whole program from stdin until EOF, then run it")
	fmt.Fprintln(w, "  -c  print license text and exit")
	fmt.Fprintln(w, "  -h  print this help and exit")
	fmt.Fprintln(w, "a literal - separates tinyc's own flags/files from main's argv")
}

// ParseArgs splits args (conventionally os.Args[1:]) into Options. A
// bare `-` stops option/file scanning; everything after it becomes
// ProgramArgs, passed through to the interpreted main(argc, argv).
func ParseArgs(args []string) (Options, error) {
	var opt Options
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "-" {
			i++
			break
		}
		switch a {
		case "-s":
			opt.RunWithoutMain = true
		case "-i":
			opt.Interactive = true
		case "-c":
			opt.ShowLicense = true
		case "-h":
			opt.ShowHelp = true
		default:
			if len(a) > 0 && a[0] == '-' {
				return opt, fmt.Errorf("climain: unrecognized flag %q", a)
			}
			opt.Files = append(opt.Files, a)
		}
	}
	opt.ProgramArgs = args[i:]
	return opt, nil
}

// Main runs the CLI end to end and returns the process exit code, the
// way the teacher's cmd/console and cmd/ccompiler drivers compute one
// before main() itself calls os.Exit.
func Main(args []string, stdout, stderr io.Writer) int {
	opt, err := ParseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		usage(stderr)
		return 2
	}
	if opt.ShowHelp {
		usage(stdout)
		return 0
	}
	if opt.ShowLicense {
		fmt.Fprint(stdout, licenseText)
		return 0
	}
	if len(opt.Files) == 0 && !opt.Interactive {
		usage(stderr)
		return 2
	}

	logger := log.New(stderr, "tinyc: ", 0)

	in := interp.Initialize(interp.Config{StackSize: interp.StackSizeFromEnv()})
	defer in.Cleanup()
	if err := in.IncludeAllSystemHeaders(); err != nil {
		logger.Printf("%v", err)
		return 1
	}

	var mainCode int
	exitCode, runErr := in.SetExitPoint(func() error {
		if opt.Interactive {
			code, err := runInteractive(in, stdout)
			mainCode = code
			return err
		}
		for _, f := range opt.Files {
			fullPath, _, err := utils.GetPathInfo(f)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", f, err)
			}
			src, err := os.ReadFile(fullPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", fullPath, err)
			}
			if err := in.ParseSource(fullPath, src, false); err != nil {
				return err
			}
		}
		if opt.RunWithoutMain {
			return nil
		}
		argv := append([]string{"tinyc"}, opt.ProgramArgs...)
		code, err := in.CallEntry(argv)
		if err != nil {
			return err
		}
		mainCode = code
		return nil
	})
	if runErr != nil {
		logger.Printf("%v", runErr)
		return 1
	}
	if mainCode != 0 {
		return mainCode
	}
	return exitCode
}

func runInteractive(in *interp.Interpreter, stdout io.Writer) (int, error) {
	fmt.Fprintln(stdout, "tinyc interactive mode: reading a program from stdin until EOF (Ctrl-D), then running main if it is defined")
	buf, err := io.ReadAll(os.Stdin)
	if err != nil {
		return 0, err
	}
	if err := in.ParseSource("<stdin>", buf, true); err != nil {
		return 0, err
	}
	if _, ok := in.Eval.Symbols.Lookup("main"); !ok {
		return 0, nil
	}
	return in.CallEntry(nil)
}
