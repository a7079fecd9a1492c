package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// minRenderInterval limits redraws so that tight benchmark loops are not
// dominated by terminal writes.
const minRenderInterval = 100 * time.Millisecond

// BarProgress draws a single-line progress bar with the current rate.
type BarProgress struct {
	mu       sync.Mutex
	label    string
	total    int64
	current  int64
	started  time.Time
	rendered time.Time
	writer   io.Writer
}

// NewProgressReporter creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	return NewLabeledProgress(w, "Progress")
}

// NewLabeledProgress is NewProgressReporter with a line prefix.
func NewLabeledProgress(w io.Writer, label string) *BarProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgress{writer: w, label: label}
}

// Start initializes the progress reporter with the total number of items.
func (p *BarProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()
	p.rendered = time.Time{}

	p.render(true)
}

// Update updates the current progress.
func (p *BarProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	p.render(false)
}

// Finish marks the progress as complete.
func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render(true)
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *BarProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ %s: %v\n", p.label, err)
}

func (p *BarProgress) render(force bool) {
	if p.total <= 0 {
		return
	}
	now := time.Now()
	if !force && now.Sub(p.rendered) < minRenderInterval {
		return
	}
	p.rendered = now

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var rate float64
	if elapsed := now.Sub(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	fmt.Fprintf(p.writer, "\r%s: [%s] %.1f%% (%d/%d) %.0f ops/s",
		p.label, bar, percent, p.current, p.total, rate)
}
