package main

import (
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion := Version
	Version = "0.1.0-test"
	defer func() { Version = origVersion }()

	cmd, buf := testCommand()
	versionCmd.Run(cmd, nil)

	out := buf.String()
	if !strings.HasPrefix(out, "throttle 0.1.0-test\n") {
		t.Errorf("Unexpected version output %q", out)
	}
	if !strings.Contains(out, runtime.Version()) {
		t.Error("Expected Go version in output")
	}
}
