package interp

import (
	"os"
	"testing"
)

func TestRunSimpleProgramReturnsMainResult(t *testing.T) {
	in := Initialize(Config{File: "test.c"})
	if err := in.IncludeAllSystemHeaders(); err != nil {
		t.Fatalf("IncludeAllSystemHeaders: %v", err)
	}

	src := `int add(int a, int b) { return a + b; } int main() { return add(19, 23); }`
	var code int
	_, err := in.SetExitPoint(func() error {
		if err := in.ParseSource("test.c", []byte(src), false); err != nil {
			return err
		}
		n, err := in.CallEntry(nil)
		if err != nil {
			return err
		}
		code = n
		return nil
	})
	if err != nil {
		t.Fatalf("SetExitPoint: %v", err)
	}
	if code != 42 {
		t.Fatalf("main() returned %d, want 42", code)
	}
}

func TestCallEntryPassesArgcArgv(t *testing.T) {
	in := Initialize(Config{File: "test.c"})
	if err := in.IncludeAllSystemHeaders(); err != nil {
		t.Fatalf("IncludeAllSystemHeaders: %v", err)
	}

	src := `int main(int argc, char **argv) { return argc; }`
	var code int
	_, err := in.SetExitPoint(func() error {
		if err := in.ParseSource("test.c", []byte(src), false); err != nil {
			return err
		}
		n, err := in.CallEntry([]string{"prog", "a", "b"})
		if err != nil {
			return err
		}
		code = n
		return nil
	})
	if err != nil {
		t.Fatalf("SetExitPoint: %v", err)
	}
	if code != 3 {
		t.Fatalf("main(argc,argv) returned %d, want 3", code)
	}
}

func TestExitUnwindsThroughSetExitPoint(t *testing.T) {
	in := Initialize(Config{File: "test.c"})
	if err := in.IncludeAllSystemHeaders(); err != nil {
		t.Fatalf("IncludeAllSystemHeaders: %v", err)
	}

	src := `int main() { exit(7); return 1; }`
	exitCode, err := in.SetExitPoint(func() error {
		if err := in.ParseSource("test.c", []byte(src), false); err != nil {
			return err
		}
		_, err := in.CallEntry(nil)
		return err
	})
	if err != nil {
		t.Fatalf("SetExitPoint: %v", err)
	}
	if exitCode != 7 {
		t.Fatalf("exitCode = %d, want 7", exitCode)
	}
}

func TestSetExitPointWrapsFatalError(t *testing.T) {
	in := Initialize(Config{File: "test.c"})
	if err := in.IncludeAllSystemHeaders(); err != nil {
		t.Fatalf("IncludeAllSystemHeaders: %v", err)
	}

	_, err := in.SetExitPoint(func() error {
		return in.ParseSource("test.c", []byte("int x = ;"), false)
	})
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Fatalf("error = %T, want *FatalError", err)
	}
}

func TestStackSizeFromEnv(t *testing.T) {
	os.Setenv("STACKSIZE", "65536")
	defer os.Unsetenv("STACKSIZE")
	if got := StackSizeFromEnv(); got != 65536 {
		t.Fatalf("StackSizeFromEnv = %d, want 65536", got)
	}

	os.Setenv("STACKSIZE", "not-a-number")
	if got := StackSizeFromEnv(); got <= 0 {
		t.Fatalf("StackSizeFromEnv fallback = %d, want a positive default", got)
	}
}
