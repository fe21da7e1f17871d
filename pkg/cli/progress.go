package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports offered and admitted load during a run.
type ProgressReporter interface {
	Start(expected int64)
	Update(offered, admitted int64)
	Finish()
	Error(err error)
}

// SimpleProgress redraws a single status line.
type SimpleProgress struct {
	mu       sync.Mutex
	expected int64
	offered  int64
	admitted int64
	started  time.Time
	writer   io.Writer
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{writer: w}
}

// Start resets the counters. expected is the offered load at completion.
func (p *SimpleProgress) Start(expected int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expected = expected
	p.offered = 0
	p.admitted = 0
	p.started = time.Now()

	p.render()
}

// Update records running totals.
func (p *SimpleProgress) Update(offered, admitted int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.offered = offered
	p.admitted = admitted
	p.render()
}

// Finish draws the final line and ends it.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

func (p *SimpleProgress) render() {
	if p.expected <= 0 {
		return
	}

	percent := min(float64(p.offered)/float64(p.expected)*100, 100)
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.admitted) / elapsed
	}

	fmt.Fprintf(p.writer, "\r[%s] %5.1f%% offered %d/%d, admitted %d (%.1f/s)",
		bar, percent, p.offered, p.expected, p.admitted, rate)
}
