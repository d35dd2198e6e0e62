package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	progressWidth = 20
)

// BatchProgress tracks the jobs of a batch run
type BatchProgress struct {
	mu        sync.Mutex
	total     int
	succeeded int
	failed    int
	skipped   int
	startTime time.Time
}

// NewBatchProgress creates a tracker for total jobs
func NewBatchProgress(total int) *BatchProgress {
	return &BatchProgress{total: total, startTime: time.Now()}
}

// Record counts one finished job and prints the updated progress line
func (p *BatchProgress) Record(name string, skipped bool, err error) {
	p.mu.Lock()
	switch {
	case skipped:
		p.skipped++
	case err != nil:
		p.failed++
	default:
		p.succeeded++
	}
	line := p.line()
	p.mu.Unlock()

	switch {
	case skipped:
		fmt.Fprintf(writer(false), "%s %s %s\n", line, Dim("[SKIPPED]"), name)
	case err != nil:
		fmt.Fprintf(writer(false), "%s %s %s: %v\n", line, Red("[FAILED]"), name, err)
	default:
		fmt.Fprintf(writer(false), "%s %s %s\n", line, Green("[DONE]"), name)
	}
}

// Done returns the number of finished jobs
func (p *BatchProgress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded + p.failed + p.skipped
}

// Bar renders the progress bar
func (p *BatchProgress) Bar() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *BatchProgress) line() string {
	done := p.succeeded + p.failed + p.skipped
	filled := 0
	if p.total > 0 {
		filled = done * progressWidth / p.total
	}
	if filled > progressWidth {
		filled = progressWidth
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, progressWidth-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, done, p.total)
}

// Elapsed returns the time since tracking started
func (p *BatchProgress) Elapsed() time.Duration {
	return time.Since(p.startTime)
}
