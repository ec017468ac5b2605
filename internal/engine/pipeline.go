package engine

import (
	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/script"
)

// OutcomeKind tags what happened to a line after it ran through every Stage.
type OutcomeKind int

const (
	Produced OutcomeKind = iota
	Dropped
	Terminated
	Aborted
)

// Outcome is what ProcessLine returns for one input line.
type Outcome struct {
	Kind OutcomeKind

	Line string // valid when Kind == Produced

	Message    string // valid when Kind == Terminated, if HasMessage
	HasMessage bool

	Err error // valid when Kind == Aborted
}

// Pipeline is the ordered, non-empty sequence of Stages applied to each
// input line. It is immutable after startup.
type Pipeline struct {
	Stages  []*Stage
	Env     *script.Env
	Top     starlark.StringDict // shared top-level scope, mutable across lines
	FailFast bool
}

// EmitFunc receives lines in the order they must reach the sink: emits
// buffered by a stage flush before any line a later stage produces, and
// before the final Produced line of the same Context.
type EmitFunc func(line string)

// ErrorFunc receives a per-line stage error under the lenient error policy
// (fail_fast == false); the caller is responsible for the diagnostic
// message's LINENUM/FILENAME/stage-name formatting.
type ErrorFunc func(stageName string, err error)

// ProcessLine drives ctx through every Stage in order, flushing emitted
// lines to onEmit as they appear and reporting per-line stage failures to
// onError under the lenient policy.
func (p *Pipeline) ProcessLine(ctx *Context, onEmit EmitFunc, onError ErrorFunc) Outcome {
	for _, stage := range p.Stages {
		verdict := stage.Evaluate(p.Env, p.Top, ctx)

		for _, e := range ctx.TakeEmits() {
			onEmit(e)
		}

		switch verdict.Kind {
		case Drop:
			return Outcome{Kind: Dropped}
		case Terminate:
			return Outcome{Kind: Terminated, Message: verdict.Message, HasMessage: verdict.HasMessage}
		case Fail:
			if p.FailFast {
				return Outcome{Kind: Aborted, Err: verdict.Err}
			}
			onError(stage.Name, verdict.Err)
			return Outcome{Kind: Dropped}
		case Keep:
			ctx.Line = verdict.Line
		}
	}
	return Outcome{Kind: Produced, Line: ctx.Line}
}
