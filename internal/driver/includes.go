package driver

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/dloss/linepipe/internal/errs"
	"github.com/dloss/linepipe/internal/script"
)

var syntaxFileOptions syntax.FileOptions

// LoadIncludes evaluates each include file once, in declaration order,
// against a shared top-level scope that becomes the base scope for every
// subsequent Stage. Include files have no Context: they only see the
// context-free builtins (script.BuiltinNames(false)), so referencing
// `line`/`LINENUM`/`emit`/`skip`/`exit` is an undefined-name error at
// compile time.
func LoadIncludes(paths []string, env *script.Env) (starlark.StringDict, error) {
	top := make(starlark.StringDict)

	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: include %s: %v", errs.ErrIO, path, err)
		}

		predeclared := make(starlark.StringDict, len(top)+8)
		for k, v := range top {
			predeclared[k] = v
		}
		for k, v := range env.Bind(nil, nil) {
			predeclared[k] = v
		}

		thread := &starlark.Thread{Name: path}
		globals, err := starlark.ExecFileOptions(&syntaxFileOptions, thread, path, src, predeclared)
		if err != nil {
			return nil, fmt.Errorf("%w: include %s: %v", errs.ErrParse, path, err)
		}

		for k, v := range globals {
			top[k] = v
		}
	}

	return top, nil
}
