package script

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/dloss/linepipe/internal/errs"
)

// resultVar is the synthetic global the compiler rewrites a script's final
// top-level expression statement into: a script's last expression, if any,
// becomes its produced value. Starlark has no built-in notion of a module's
// return value, so linepipe splices one in at the source level before
// compiling: see Run.
const resultVar = "__result__"

// fileOptions lets stage scripts use if/for at the top level and rebind a
// top-level name more than once.
var fileOptions = &syntax.FileOptions{TopLevelControl: true, GlobalReassign: true}

// Compiled is a Stage's compiled script unit: immutable, built once,
// evaluated once per line via Program.Init with a fresh predeclared scope.
type Compiled struct {
	Program *starlark.Program
}

// Compile parses src, rewrites its trailing expression statement (if any)
// into an assignment to resultVar, and compiles the result into a
// *starlark.Program. predeclared lists every name Bind may supply once the
// program actually runs (ambient ids + builtins + whatever the Include
// Loader already defined at the top level).
func Compile(name string, src string, predeclared map[string]bool) (*Compiled, error) {
	rewritten, err := rewriteLastExpr(name, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrParse, name, err)
	}

	f, err := fileOptions.Parse(name, rewritten, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrParse, name, err)
	}

	prog, err := starlark.FileProgram(f, func(id string) bool { return predeclared[id] })
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrParse, name, err)
	}

	return &Compiled{Program: prog}, nil
}

// Run executes the compiled program once against predeclared, returning the
// resulting module globals (including resultVar, if the original script's
// last statement was an expression) for the caller to interpret per the
// Stage's role.
func Run(thread *starlark.Thread, c *Compiled, predeclared starlark.StringDict) (globals starlark.StringDict, produced starlark.Value, hasResult bool, err error) {
	globals, err = c.Program.Init(thread, predeclared)
	if err != nil {
		return nil, nil, false, err
	}
	if v, ok := globals[resultVar]; ok {
		delete(globals, resultVar)
		return globals, v, true, nil
	}
	return globals, nil, false, nil
}

// rewriteLastExpr splices `resultVar = (` ... `)` around the source text of
// the file's final top-level expression statement, if it has one. Every
// statement before it is left untouched, so ordinary side effects
// (emit/skip/exit calls, assignments) still run in their original order.
func rewriteLastExpr(name, src string) (string, error) {
	f, err := syntax.Parse(name, src, 0)
	if err != nil {
		return "", err
	}
	if len(f.Stmts) == 0 {
		return src, nil
	}

	last := f.Stmts[len(f.Stmts)-1]
	expr, ok := last.(*syntax.ExprStmt)
	if !ok {
		return src, nil
	}

	start, end := expr.Span()
	buf := []byte(src)
	startOff := byteOffset(buf, start)
	endOff := byteOffset(buf, end)

	out := make([]byte, 0, len(src)+len(resultVar)+8)
	out = append(out, buf[:startOff]...)
	out = append(out, resultVar...)
	out = append(out, " = ("...)
	out = append(out, buf[startOff:endOff]...)
	out = append(out, ')')
	out = append(out, buf[endOff:]...)
	return string(out), nil
}

// byteOffset converts a 1-based (line, col) syntax.Position, where Col
// counts runes, into a byte offset into src.
func byteOffset(src []byte, pos syntax.Position) int {
	line, col := int(pos.Line), int(pos.Col)

	off := 0
	for l := 1; l < line; l++ {
		idx := bytes.IndexByte(src[off:], '\n')
		if idx < 0 {
			return len(src)
		}
		off += idx + 1
	}

	for n := 1; n < col; n++ {
		if off >= len(src) {
			break
		}
		_, size := utf8.DecodeRune(src[off:])
		off += size
	}
	return off
}
