package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/store"
)

// GlobHandle is the `glob` identifier bound into every scope: an
// attribute-style view of the Global Store's free-form mapping.
// `glob.foo` reads/writes the same value Store.GlobGet("foo", nil) and
// Store.GlobSet("foo", v) do; reading an absent name gives None.
type GlobHandle struct {
	store *store.Store
}

func NewGlobHandle(s *store.Store) *GlobHandle {
	return &GlobHandle{store: s}
}

var (
	_ starlark.Value       = (*GlobHandle)(nil)
	_ starlark.HasAttrs    = (*GlobHandle)(nil)
	_ starlark.HasSetField = (*GlobHandle)(nil)
)

func (g *GlobHandle) String() string        { return "glob(...)" }
func (g *GlobHandle) Type() string          { return "glob" }
func (g *GlobHandle) Freeze()               {}
func (g *GlobHandle) Truth() starlark.Bool  { return starlark.True }
func (g *GlobHandle) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: glob") }

// Attr implements starlark.HasAttrs: glob.name reads Global Store glob[name].
func (g *GlobHandle) Attr(name string) (starlark.Value, error) {
	if !g.store.GlobContains(name) {
		return starlark.None, nil
	}
	return ToScript(g.store.GlobGet(name, nil))
}

// AttrNames implements starlark.HasAttrs. The glob mapping has no fixed
// schema, so there is nothing to enumerate ahead of a read.
func (g *GlobHandle) AttrNames() []string { return nil }

// SetField implements starlark.HasSetField: glob.name = v writes through to
// the Global Store, making the assignment visible to every later stage and
// line for the rest of the run.
func (g *GlobHandle) SetField(name string, val starlark.Value) error {
	hv, err := ToHost(val)
	if err != nil {
		return err
	}
	g.store.GlobSet(name, hv)
	return nil
}
