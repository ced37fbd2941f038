package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker follows a batch of targets as their results arrive.
type StatusTracker struct {
	mu        sync.Mutex
	total     int
	done      int
	failed    int
	posts     int
	startTime time.Time
	out       io.Writer
}

// NewStatusTracker creates a tracker for total targets writing to out.
func NewStatusTracker(total int, out io.Writer) *StatusTracker {
	return &StatusTracker{total: total, startTime: time.Now(), out: out}
}

// Record counts one finished target.
func (st *StatusTracker) Record(username string, posts int, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.done++
	st.posts += posts
	status := Green("[DONE]")
	if err != nil {
		st.failed++
		status = Red("[FAILED]")
	}
	fmt.Fprintf(st.out, "%s %s %s\n", st.bar(), status, username)
}

func (st *StatusTracker) bar() string {
	filled := 0
	if st.total > 0 {
		filled = st.done * barWidth / st.total
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		st.done, st.total)
}

// Progress returns the rendered progress bar.
func (st *StatusTracker) Progress() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.bar()
}

// Counts returns finished, failed and collected post counts.
func (st *StatusTracker) Counts() (done, failed, posts int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.done, st.failed, st.posts
}

// Elapsed returns the elapsed time since tracking started
func (st *StatusTracker) Elapsed() time.Duration {
	return time.Since(st.startTime)
}

// Rate returns finished targets per minute.
func (st *StatusTracker) Rate() float64 {
	elapsed := st.Elapsed().Minutes()
	if elapsed == 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return float64(st.done) / elapsed
}
