package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// renderProgressBar creates a text progress bar like [=====>    ]
// current=0, total=10, width=10 → [          ]
// current=5, total=10, width=10 → [=====>    ]
// current=10, total=10, width=10 → [==========]
// current=3, total=10, width=10 → [==>       ]
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return "[" + strings.Repeat(" ", width) + "]"
	}

	var bar strings.Builder
	bar.WriteString("[")

	switch {
	case current >= total:
		bar.WriteString(strings.Repeat("=", width))
	case current == 0:
		bar.WriteString(strings.Repeat(" ", width))
	default:
		ratio := float64(current) / float64(total)
		head := int(ratio*float64(width) + 0.5)
		head = min(max(head, 1), width)

		// From halfway on the arrow sits after the filled part.
		equals := head - 1
		if ratio >= 0.5 {
			equals = head
		}
		equals = min(max(equals, 0), width-1)

		bar.WriteString(strings.Repeat("=", equals))
		bar.WriteString(">")
		bar.WriteString(strings.Repeat(" ", width-equals-1))
	}

	bar.WriteString("]")
	return bar.String()
}

// streamProgress tracks one mutation stream
type streamProgress struct {
	label    string
	total    int
	done     int
	failures []string
}

// BatchProgress renders per-stream progress bars for follow and unfollow
// batches. It is safe for concurrent use.
type BatchProgress struct {
	out      io.Writer
	quiet    bool
	streams  map[string]*streamProgress
	order    []string
	mu       sync.Mutex
	rendered bool
}

// NewBatchProgress creates a progress display writing to out
func NewBatchProgress(out io.Writer, quiet bool) *BatchProgress {
	return &BatchProgress{
		out:     out,
		quiet:   quiet,
		streams: make(map[string]*streamProgress),
	}
}

// AddStream registers a stream with its expected size. Streams with no
// work are not shown.
func (bp *BatchProgress) AddStream(label string, total int) {
	if total <= 0 {
		return
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if _, ok := bp.streams[label]; !ok {
		bp.order = append(bp.order, label)
	}
	bp.streams[label] = &streamProgress{label: label, total: total}
}

// AddResults records one finished batch for a stream
func (bp *BatchProgress) AddResults(label string, results map[string]bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	s, ok := bp.streams[label]
	if !ok {
		return
	}

	var failed []string
	for name, success := range results {
		s.done++
		if !success {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	s.failures = append(s.failures, failed...)

	bp.render()
}

func (bp *BatchProgress) render() {
	if bp.quiet || len(bp.order) == 0 {
		return
	}

	if bp.rendered {
		fmt.Fprintf(bp.out, "\033[%dA", len(bp.order))
		fmt.Fprint(bp.out, "\033[J")
	}

	for _, label := range bp.order {
		s := bp.streams[label]
		percent := (s.done * 100) / s.total
		fmt.Fprintf(bp.out, "%-9s %d/%d %s %d%%\n", s.label, s.done, s.total, renderProgressBar(s.done, s.total, 20), percent)
	}

	bp.rendered = true
}

// Complete prints the failures of every stream
func (bp *BatchProgress) Complete() {
	if bp.quiet {
		return
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, label := range bp.order {
		s := bp.streams[label]
		if len(s.failures) == 0 {
			continue
		}
		fmt.Fprintf(bp.out, "\n%s failures:\n", s.label)
		for _, f := range s.failures {
			fmt.Fprintf(bp.out, "  ✗ %s\n", f)
		}
	}
}

// FailureCount returns the number of failed results across streams
func (bp *BatchProgress) FailureCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	n := 0
	for _, s := range bp.streams {
		n += len(s.failures)
	}
	return n
}
