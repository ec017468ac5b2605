package script

import (
	"testing"

	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/store"
)

type fakeCtx struct {
	emitted    []string
	skipped    bool
	exited     bool
	exitMsg    string
	hasExitMsg bool
}

func (f *fakeCtx) Emit(line string) { f.emitted = append(f.emitted, line) }
func (f *fakeCtx) Skip()            { f.skipped = true }
func (f *fakeCtx) Exit(message string, hasMessage bool) {
	f.exited = true
	f.exitMsg = message
	f.hasExitMsg = hasMessage
}

func evalWithEnv(t *testing.T, env *Env, ctx StageContext, amb *AmbientLine, src string) (starlark.Value, bool) {
	t.Helper()
	predeclared := env.Bind(ctx, amb)
	names := make(map[string]bool, len(predeclared))
	for k := range predeclared {
		names[k] = true
	}
	c, err := Compile("test", src, names)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	thread := &starlark.Thread{Name: "test"}
	_, produced, hasResult, err := Run(thread, c, predeclared)
	if err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
	return produced, hasResult
}

func TestBuiltinIncAtomicPerKey(t *testing.T) {
	env := NewEnv(store.New())
	v, hasResult := evalWithEnv(t, env, nil, nil, `inc("n")`)
	if !hasResult {
		t.Fatal("expected a result")
	}
	if i, ok := v.(starlark.Int); !ok || i.String() != "1" {
		t.Errorf("first inc: got %v, want 1", v)
	}
	v, _ = evalWithEnv(t, env, nil, nil, `inc("n")`)
	if i, ok := v.(starlark.Int); !ok || i.String() != "2" {
		t.Errorf("second inc: got %v, want 2", v)
	}
}

func TestBuiltinGlobPersistsAcrossEvaluations(t *testing.T) {
	env := NewEnv(store.New())
	evalWithEnv(t, env, nil, nil, `glob.count = 1`)
	v, hasResult := evalWithEnv(t, env, nil, nil, `glob.count`)
	if !hasResult {
		t.Fatal("expected a result")
	}
	if i, ok := v.(starlark.Int); !ok || i.String() != "1" {
		t.Errorf("got %v, want 1", v)
	}
}

func TestBuiltinParseJSONScalarsAndObjects(t *testing.T) {
	env := NewEnv(store.New())

	v, _ := evalWithEnv(t, env, nil, nil, `parse_json("42")`)
	if i, ok := v.(starlark.Int); !ok || i.String() != "42" {
		t.Errorf("scalar int: got %v", v)
	}

	v, _ = evalWithEnv(t, env, nil, nil, `parse_json('{"a": 1}')["a"]`)
	if i, ok := v.(starlark.Int); !ok || i.String() != "1" {
		t.Errorf("object field: got %v", v)
	}
}

func TestBuiltinParseCSVAndDumpCSV(t *testing.T) {
	env := NewEnv(store.New())

	v, _ := evalWithEnv(t, env, nil, nil, `parse_csv("a,b,c")[1]`)
	if s, ok := starlark.AsString(v); !ok || s != "b" {
		t.Errorf("parse_csv: got %v, want b", v)
	}

	v, _ = evalWithEnv(t, env, nil, nil, `dump_csv(["x", "y"])`)
	if s, ok := starlark.AsString(v); !ok || s != "x,y" {
		t.Errorf("dump_csv: got %v, want x,y", v)
	}
}

func TestBuiltinRegexMatchAndReplace(t *testing.T) {
	env := NewEnv(store.New())

	v, _ := evalWithEnv(t, env, nil, nil, `regex_match("^a.c$", "abc")`)
	if b, ok := v.(starlark.Bool); !ok || !bool(b) {
		t.Errorf("regex_match: got %v, want True", v)
	}

	v, _ = evalWithEnv(t, env, nil, nil, `regex_replace("b", "X", "abc")`)
	if s, ok := starlark.AsString(v); !ok || s != "aXc" {
		t.Errorf("regex_replace: got %v, want aXc", v)
	}
}

func TestBuiltinEmitSkipExit(t *testing.T) {
	env := NewEnv(store.New())
	ctx := &fakeCtx{}
	amb := &AmbientLine{Line: "hi", LineNum: 1, RecNum: 1}

	evalWithEnv(t, env, ctx, amb, `emit("x"); emit("y"); skip(); exit("done")`)

	if len(ctx.emitted) != 2 || ctx.emitted[0] != "x" || ctx.emitted[1] != "y" {
		t.Errorf("emitted: got %v", ctx.emitted)
	}
	if !ctx.skipped {
		t.Error("expected skipped")
	}
	if !ctx.exited || !ctx.hasExitMsg || ctx.exitMsg != "done" {
		t.Errorf("exit state: exited=%v hasMsg=%v msg=%q", ctx.exited, ctx.hasExitMsg, ctx.exitMsg)
	}
}

func TestAmbientLineFilenameAbsentMarker(t *testing.T) {
	env := NewEnv(store.New())
	amb := &AmbientLine{Line: "x", LineNum: 1, RecNum: 1, Filename: ""}
	v, _ := evalWithEnv(t, env, &fakeCtx{}, amb, `FILENAME`)
	if v != starlark.None {
		t.Errorf("FILENAME for stdin: got %v, want None", v)
	}
}

func TestBuiltinNamesContextVsIncludeScope(t *testing.T) {
	withCtx := BuiltinNames(true)
	withoutCtx := BuiltinNames(false)
	if len(withCtx) <= len(withoutCtx) {
		t.Fatalf("expected context names to add entries: %v vs %v", withCtx, withoutCtx)
	}
	for _, name := range []string{"emit", "skip", "exit", "line", "LINENUM", "RECNUM", "FILENAME"} {
		found := false
		for _, n := range withoutCtx {
			if n == name {
				found = true
			}
		}
		if found {
			t.Errorf("include scope should not predeclare %q", name)
		}
	}
}
