package cli

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestSimpleProgressBasic(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(100)
	progress.Update(50, 10)
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "offered 50/100") {
		t.Errorf("Expected offered count in output, got %q", output)
	}
	if !strings.Contains(output, "admitted 10") {
		t.Errorf("Expected admitted count in output, got %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Expected Finish to end the line")
	}
}

func TestSimpleProgressOverrunCapped(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(10)
	progress.Update(15, 5)

	if !strings.Contains(buf.String(), "100.0%") {
		t.Errorf("Expected percentage capped at 100, got %q", buf.String())
	}
}

func TestSimpleProgressZeroExpected(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(0)
	progress.Update(3, 1)
	progress.Finish()

	if got := buf.String(); got != "\n" {
		t.Errorf("Expected only a newline, got %q", got)
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(100)
	progress.Error(fmt.Errorf("test error"))

	if !strings.Contains(buf.String(), "Error: test error") {
		t.Errorf("Expected error output, got %q", buf.String())
	}
}

func TestSimpleProgressConcurrent(t *testing.T) {
	progress := NewProgressReporter(&bytes.Buffer{})
	progress.Start(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				progress.Update(int64(i*100+j), int64(j))
			}
		}(i)
	}
	wg.Wait()
	progress.Finish()
}

func TestNewProgressReporterNilWriter(t *testing.T) {
	p, ok := NewProgressReporter(nil).(*SimpleProgress)
	if !ok || p.writer == nil {
		t.Error("Expected default writer")
	}
}
