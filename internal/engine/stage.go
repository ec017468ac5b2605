package engine

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/errs"
	"github.com/dloss/linepipe/internal/script"
)

// Role is a Stage's declared kind.
type Role int

const (
	Transform Role = iota
	Filter
)

func (r Role) String() string {
	if r == Filter {
		return "filter"
	}
	return "transform"
}

// Stage is a single compiled script unit with a declared role, immutable
// after load.
type Stage struct {
	Role     Role
	Name     string
	compiled *script.Compiled
}

// NewStage compiles src into a Stage. predeclared must list every name the
// scope Evaluate builds will supply: the shared top-level names the Include
// Loader produced, plus every ambient id and builtin (script.BuiltinNames).
func NewStage(name string, role Role, src string, predeclared map[string]bool) (*Stage, error) {
	compiled, err := script.Compile(name, src, predeclared)
	if err != nil {
		return nil, err
	}
	return &Stage{Role: role, Name: name, compiled: compiled}, nil
}

// Evaluate runs the Stage against ctx: bind ambient ids + builtins into a
// fresh scope inheriting from top, execute, consult control flags, then
// interpret the produced value per role. top is the shared, mutable
// top-level scope populated by the Include Loader; after a successful run,
// every top-level name the stage's script bound is copied into top, so
// the assignment is visible to later stages and lines.
func (s *Stage) Evaluate(env *script.Env, top starlark.StringDict, ctx *Context) Verdict {
	amb := &script.AmbientLine{
		Line:     ctx.Line,
		LineNum:  ctx.LineNum,
		RecNum:   ctx.RecNum,
		Filename: ctx.Filename,
	}

	predeclared := make(starlark.StringDict, len(top)+8)
	for k, v := range top {
		predeclared[k] = v
	}
	for k, v := range env.Bind(ctx, amb) {
		predeclared[k] = v
	}

	thread := &starlark.Thread{Name: s.Name}

	globals, produced, hasResult, err := script.Run(thread, s.compiled, predeclared)
	if err != nil {
		return FailVerdict(fmt.Errorf("%w: stage %s: %v", errs.ErrRuntime, s.Name, err))
	}

	// the top-level scope escape hatch: every top-level name the stage bound,
	// new or already in top, persists across the rest of this run
	for k, v := range globals {
		top[k] = v
	}

	if ctx.terminated {
		return TerminateVerdict(ctx.termMessage, ctx.hasTermMsg)
	}
	if ctx.skipped {
		return DropVerdict()
	}

	return s.interpret(produced, hasResult, ctx.Line)
}

func (s *Stage) interpret(produced starlark.Value, hasResult bool, currentLine string) Verdict {
	if s.Role == Filter {
		if hasResult && bool(produced.Truth()) {
			return KeepVerdict(currentLine)
		}
		return DropVerdict()
	}

	// Transform
	if !hasResult {
		return KeepVerdict(currentLine)
	}
	switch v := produced.(type) {
	case starlark.NoneType:
		return KeepVerdict(currentLine)
	case starlark.String:
		return KeepVerdict(string(v))
	case starlark.Bool:
		if bool(v) {
			return KeepVerdict(currentLine)
		}
		return DropVerdict()
	default:
		return KeepVerdict(script.CoerceString(v))
	}
}
