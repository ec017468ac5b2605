// Package engine implements the pipeline execution core: the per-line
// Context, the Stage/Verdict contract, and the Pipeline that drives one line
// through an ordered list of Stages.
package engine

import "github.com/dloss/linepipe/internal/store"

// Context is the per-line ambient record threaded through a Pipeline while
// it processes a single line. It is constructed immediately before the
// first Stage runs and discarded once the Pipeline finishes that line.
type Context struct {
	Line string

	LineNum  int64
	RecNum   int64
	Filename string // empty means standard input

	Store *store.Store

	emit []string

	skipped     bool
	terminated  bool
	termMessage string
	hasTermMsg  bool
}

// Emit appends line to the emit buffer, in call order.
func (c *Context) Emit(line string) { c.emit = append(c.emit, line) }

// Skip sets the skipped flag.
func (c *Context) Skip() { c.skipped = true }

// Exit sets the terminated flag and, if present, the terminate message.
func (c *Context) Exit(message string, hasMessage bool) {
	c.terminated = true
	c.termMessage = message
	c.hasTermMsg = hasMessage
}

// TakeEmits returns and clears the emit buffer. The Pipeline calls this
// after every Stage invocation so emitted lines flush in stage order.
func (c *Context) TakeEmits() []string {
	e := c.emit
	c.emit = nil
	return e
}
