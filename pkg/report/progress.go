package report

import (
	"fmt"
	"io"
)

// Progress renders per-row progress as `row i of N (p%)`, rewriting the same
// console line for each row of one candidate file.
type Progress struct {
	w     io.Writer
	total int
}

// NewProgress creates a Progress for total rows writing to w.
func NewProgress(w io.Writer, total int) *Progress {
	return &Progress{w: w, total: total}
}

// Row reports that row i (1-based) is being processed.
func (p *Progress) Row(i int) {
	pct := 100.0
	if p.total > 0 {
		pct = float64(i) / float64(p.total) * 100
	}
	fmt.Fprintf(p.w, "\rrow %d of %d (%.1f%%)", i, p.total, pct) //nolint:errcheck
}

// Done ends the in-place line; one line break separates candidate files.
func (p *Progress) Done() {
	fmt.Fprintln(p.w) //nolint:errcheck
}
