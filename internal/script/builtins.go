package script

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/buger/jsonparser"
	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/errs"
)

// Ambient identifies the names bound per Context: line, LINENUM,
// FILENAME, RECNUM. AmbientLine carries the values for one evaluation.
type AmbientLine struct {
	Line     string
	LineNum  int64
	RecNum   int64
	Filename string // empty means standard input ("absent marker")
}

func (a AmbientLine) dict() starlark.StringDict {
	filename := starlark.Value(starlark.None)
	if a.Filename != "" {
		filename = starlark.String(a.Filename)
	}
	return starlark.StringDict{
		"line":     starlark.String(a.Line),
		"LINENUM":  starlark.MakeInt64(a.LineNum),
		"RECNUM":   starlark.MakeInt64(a.RecNum),
		"FILENAME": filename,
	}
}

// Bind builds the predeclared scope for one Stage evaluation: the
// context-free builtins (always present), the context-bound builtins
// (emit/skip/exit, only when ctx != nil), and the ambient ids (only when
// amb != nil, i.e. never for include files).
func (e *Env) Bind(ctx StageContext, amb *AmbientLine) starlark.StringDict {
	d := starlark.StringDict{
		"glob":          NewGlobHandle(e.Store),
		"inc":           e.builtinInc(),
		"parse_json":    e.builtinParseJSON(),
		"parse_csv":     e.builtinParseCSV(),
		"dump_csv":      e.builtinDumpCSV(),
		"regex_match":   e.builtinRegexMatch(),
		"regex_replace": e.builtinRegexReplace(),
	}
	if ctx != nil {
		d["emit"] = builtinEmit(ctx)
		d["skip"] = builtinSkip(ctx)
		d["exit"] = builtinExit(ctx)
	}
	if amb != nil {
		for k, v := range amb.dict() {
			d[k] = v
		}
	}
	return d
}

// BuiltinNames returns every name Bind can ever predeclare, used to build
// the isPredeclared predicate Stage compilation needs: a Stage is compiled
// once and free-variable resolution happens at that point, not per line, so
// the compiler must be told up front which names a fully-bound scope will
// eventually supply.
func BuiltinNames(withContext bool) []string {
	names := []string{"glob", "inc", "parse_json", "parse_csv", "dump_csv", "regex_match", "regex_replace"}
	if withContext {
		names = append(names, "emit", "skip", "exit", "line", "LINENUM", "RECNUM", "FILENAME")
	}
	return names
}

func builtinEmit(ctx StageContext) *starlark.Builtin {
	return starlark.NewBuiltin("emit", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackArgs("emit", args, kwargs, "x", &v); err != nil {
			return nil, err
		}
		ctx.Emit(CoerceString(v))
		return starlark.None, nil
	})
}

func builtinSkip(ctx StageContext) *starlark.Builtin {
	return starlark.NewBuiltin("skip", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("skip", args, kwargs); err != nil {
			return nil, err
		}
		ctx.Skip()
		return starlark.None, nil
	})
}

func builtinExit(ctx StageContext) *starlark.Builtin {
	return starlark.NewBuiltin("exit", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg starlark.Value = starlark.None
		if err := starlark.UnpackArgs("exit", args, kwargs, "msg?", &msg); err != nil {
			return nil, err
		}
		if msg == starlark.None {
			ctx.Exit("", false)
		} else {
			ctx.Exit(CoerceString(msg), true)
		}
		return starlark.None, nil
	})
}

func (e *Env) builtinInc() *starlark.Builtin {
	return starlark.NewBuiltin("inc", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key string
		if err := starlark.UnpackArgs("inc", args, kwargs, "key", &key); err != nil {
			return nil, err
		}
		return starlark.MakeInt64(e.Store.Inc(key)), nil
	})
}

func (e *Env) builtinParseJSON() *starlark.Builtin {
	return starlark.NewBuiltin("parse_json", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var s string
		if err := starlark.UnpackArgs("parse_json", args, kwargs, "s", &s); err != nil {
			return nil, err
		}

		data := []byte(strings.TrimSpace(s))
		// fast path: a bare scalar, decoded without a full unmarshal.
		if v, dt, _, err := jsonparser.Get(data); err == nil {
			switch dt {
			case jsonparser.String:
				unescaped, uerr := jsonparser.ParseString(v)
				if uerr != nil {
					return nil, fmt.Errorf("%w: parse_json: %v", errs.ErrRuntime, uerr)
				}
				return starlark.String(unescaped), nil
			case jsonparser.Number:
				if i, ierr := jsonparser.ParseInt(v); ierr == nil {
					return starlark.MakeInt64(i), nil
				}
				n, nerr := jsonparser.ParseFloat(v)
				if nerr != nil {
					return nil, fmt.Errorf("%w: parse_json: %v", errs.ErrRuntime, nerr)
				}
				return starlark.Float(n), nil
			case jsonparser.Boolean:
				b, berr := jsonparser.ParseBoolean(v)
				if berr != nil {
					return nil, fmt.Errorf("%w: parse_json: %v", errs.ErrRuntime, berr)
				}
				return starlark.Bool(b), nil
			case jsonparser.Null:
				return starlark.None, nil
			}
		}

		// objects and arrays: decode generically and bridge recursively.
		var host any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&host); err != nil {
			return nil, fmt.Errorf("%w: parse_json: %v", errs.ErrRuntime, err)
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("%w: parse_json: trailing data after JSON value", errs.ErrRuntime)
		}
		sv, err := ToScript(normalizeJSON(host))
		if err != nil {
			return nil, err
		}
		return sv, nil
	})
}

// normalizeJSON converts encoding/json's decode shapes (map[string]any,
// []any, json.Number, ...) into exactly the ones ToScript understands:
// integral numbers become int64, other numbers float64.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeJSON(e)
		}
		return out
	default:
		return x
	}
}

func (e *Env) builtinParseCSV() *starlark.Builtin {
	return starlark.NewBuiltin("parse_csv", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var s string
		if err := starlark.UnpackArgs("parse_csv", args, kwargs, "s", &s); err != nil {
			return nil, err
		}

		r := csv.NewReader(strings.NewReader(s))
		record, err := r.Read()
		if err != nil {
			return nil, fmt.Errorf("%w: parse_csv: %v", errs.ErrRuntime, err)
		}

		elems := make([]starlark.Value, len(record))
		for i, f := range record {
			elems[i] = starlark.String(f)
		}
		return starlark.NewList(elems), nil
	})
}

func (e *Env) builtinDumpCSV() *starlark.Builtin {
	return starlark.NewBuiltin("dump_csv", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var seq starlark.Iterable
		if err := starlark.UnpackArgs("dump_csv", args, kwargs, "seq", &seq); err != nil {
			return nil, err
		}

		var fields []string
		iter := seq.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			fields = append(fields, CoerceString(elem))
		}

		var sb strings.Builder
		w := csv.NewWriter(&sb)
		if err := w.Write(fields); err != nil {
			return nil, fmt.Errorf("%w: dump_csv: %v", errs.ErrRuntime, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("%w: dump_csv: %v", errs.ErrRuntime, err)
		}
		return starlark.String(strings.TrimRight(sb.String(), "\r\n")), nil
	})
}

func (e *Env) builtinRegexMatch() *starlark.Builtin {
	return starlark.NewBuiltin("regex_match", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var pat, s string
		if err := starlark.UnpackArgs("regex_match", args, kwargs, "pat", &pat, "s", &s); err != nil {
			return nil, err
		}
		re, err := e.regex.compile(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: regex_match: %v", errs.ErrRuntime, err)
		}
		return starlark.Bool(re.MatchString(s)), nil
	})
}

func (e *Env) builtinRegexReplace() *starlark.Builtin {
	return starlark.NewBuiltin("regex_replace", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var pat, repl, s string
		if err := starlark.UnpackArgs("regex_replace", args, kwargs, "pat", &pat, "repl", &repl, "s", &s); err != nil {
			return nil, err
		}
		re, err := e.regex.compile(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: regex_replace: %v", errs.ErrRuntime, err)
		}
		return starlark.String(re.ReplaceAllString(s, repl)), nil
	})
}
