// Package script is the Value Bridge, the host-provided builtin surface, and
// the compiled-stage machinery that binds linepipe's Stage/Pipeline model to
// go.starlark.net, the embeddable Python-subset interpreter linepipe uses as
// its scripting evaluator.
package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/errs"
)

// ToScript converts a host value into its script-runtime representation.
// Supported host types: nil (absent), string, int64, uint64, float64, bool,
// []any (ordered sequence) and map[string]any (string-keyed mapping).
// ToScript is pure: it never touches the Global Store or a Context.
func ToScript(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case string:
		return starlark.String(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case uint64:
		return starlark.MakeUint64(x), nil
	case float64:
		return starlark.Float(x), nil
	case bool:
		return starlark.Bool(x), nil
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := ToScript(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			elems[i] = starlark.String(e)
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(x))
		for k, e := range x {
			sv, err := ToScript(e)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrBridge, err)
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unsupported host type %T", errs.ErrBridge, v)
	}
}

// ToHost converts a script value back into a host value using the same type
// set ToScript accepts. Sequences and mappings are converted recursively.
func ToHost(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		if u, ok := x.Uint64(); ok {
			return u, nil
		}
		return nil, fmt.Errorf("%w: integer %s out of host range", errs.ErrBridge, x.String())
	case starlark.Float:
		return float64(x), nil
	case *starlark.List:
		out := make([]any, 0, x.Len())
		iter := x.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			hv, err := ToHost(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, hv)
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, len(x))
		for i, e := range x {
			hv, err := ToHost(e)
			if err != nil {
				return nil, err
			}
			out[i] = hv
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("%w: mapping key %s is not a string", errs.ErrBridge, item[0].Type())
			}
			hv, err := ToHost(item[1])
			if err != nil {
				return nil, err
			}
			out[key] = hv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported script type %s", errs.ErrBridge, v.Type())
	}
}

// CoerceString renders v the way emit() and dump_csv() coerce a value to a
// line: raw text for a script string, the Value Bridge's host form
// stringified otherwise.
func CoerceString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	if hv, err := ToHost(v); err == nil {
		return fmt.Sprint(hv)
	}
	return v.String()
}
