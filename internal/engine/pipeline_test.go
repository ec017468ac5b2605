package engine

import (
	"testing"

	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/script"
	"github.com/dloss/linepipe/internal/store"
)

func newTestPipeline(t *testing.T, specs []struct {
	role Role
	src  string
}, failFast bool) *Pipeline {
	t.Helper()
	st := store.New()
	env := script.NewEnv(st)
	names := make(map[string]bool)
	for _, n := range script.BuiltinNames(true) {
		names[n] = true
	}
	var stages []*Stage
	for i, spec := range specs {
		s, err := NewStage(spec.src, spec.role, spec.src, names)
		if err != nil {
			t.Fatalf("stage %d NewStage(%q): %v", i, spec.src, err)
		}
		stages = append(stages, s)
	}
	return &Pipeline{Stages: stages, Env: env, Top: starlark.StringDict{}, FailFast: failFast}
}

func processOneLine(t *testing.T, p *Pipeline, store *store.Store, line string) (Outcome, []string, []string) {
	t.Helper()
	ctx := &Context{Line: line, LineNum: 1, RecNum: 1, Store: store}
	var emits []string
	var errs []string
	outcome := p.ProcessLine(ctx, func(l string) { emits = append(emits, l) }, func(stage string, err error) { errs = append(errs, stage+": "+err.Error()) })
	return outcome, emits, errs
}

func TestPipelineUppercaseTransform(t *testing.T) {
	p := newTestPipeline(t, []struct {
		role Role
		src  string
	}{{Transform, `line.upper()`}}, false)

	outcome, _, _ := processOneLine(t, p, store.New(), "hello world")
	if outcome.Kind != Produced || outcome.Line != "HELLO WORLD" {
		t.Errorf("got %+v", outcome)
	}
}

func TestPipelineFilterThenCounterTransform(t *testing.T) {
	p := newTestPipeline(t, []struct {
		role Role
		src  string
	}{
		{Filter, `int(line) % 2 == 0`},
		{Transform, `c = inc("k"); "{}:{}".format(c, line)`},
	}, false)

	st := store.New()
	for _, line := range []string{"1", "2", "3", "4", "5"} {
		outcome, _, _ := processOneLine(t, p, st, line)
		if line == "2" {
			if outcome.Kind != Produced || outcome.Line != "1:2" {
				t.Errorf("line 2: got %+v", outcome)
			}
		}
		if line == "4" {
			if outcome.Kind != Produced || outcome.Line != "2:4" {
				t.Errorf("line 4: got %+v", outcome)
			}
		}
		if line == "1" || line == "3" || line == "5" {
			if outcome.Kind != Dropped {
				t.Errorf("line %s: got %+v, want Dropped", line, outcome)
			}
		}
	}
}

func TestPipelineEmitOrderingPrecedesProducedLine(t *testing.T) {
	p := newTestPipeline(t, []struct {
		role Role
		src  string
	}{{Transform, `emit("x"); emit("y"); line + "!"`}}, false)

	outcome, emits, _ := processOneLine(t, p, store.New(), "a")
	if len(emits) != 2 || emits[0] != "x" || emits[1] != "y" {
		t.Fatalf("emits: got %v", emits)
	}
	if outcome.Kind != Produced || outcome.Line != "a!" {
		t.Errorf("got %+v", outcome)
	}
}

func TestPipelineLenientErrorPolicyKeepsGoing(t *testing.T) {
	p := newTestPipeline(t, []struct {
		role Role
		src  string
	}{{Transform, `int(line) * 2`}}, false)

	st := store.New()
	outcome1, _, _ := processOneLine(t, p, st, "1")
	if outcome1.Kind != Produced || outcome1.Line != "2" {
		t.Errorf("line 1: got %+v", outcome1)
	}
	outcome2, _, errs := processOneLine(t, p, st, "NaN")
	if outcome2.Kind != Dropped || len(errs) != 1 {
		t.Errorf("line NaN: got %+v errs=%v", outcome2, errs)
	}
	outcome3, _, _ := processOneLine(t, p, st, "3")
	if outcome3.Kind != Produced || outcome3.Line != "6" {
		t.Errorf("line 3: got %+v", outcome3)
	}
}

func TestPipelineFailFastAbortsRun(t *testing.T) {
	p := newTestPipeline(t, []struct {
		role Role
		src  string
	}{{Transform, `int(line) * 2`}}, true)

	outcome, _, errs := processOneLine(t, p, store.New(), "NaN")
	if outcome.Kind != Aborted || outcome.Err == nil {
		t.Errorf("got %+v", outcome)
	}
	if len(errs) != 0 {
		t.Errorf("onError should not be called under fail-fast, got %v", errs)
	}
}

func TestPipelineAllLinesDroppedProducesNoOutput(t *testing.T) {
	p := newTestPipeline(t, []struct {
		role Role
		src  string
	}{{Filter, `False`}}, false)

	st := store.New()
	for _, line := range []string{"a", "b"} {
		outcome, _, _ := processOneLine(t, p, st, line)
		if outcome.Kind != Dropped {
			t.Errorf("line %s: got %+v, want Dropped", line, outcome)
		}
	}
}
