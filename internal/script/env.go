package script

import (
	"github.com/dloss/linepipe/internal/store"
)

// StageContext is the minimal surface a running Stage's builtins need from
// the per-line Context: append to the emit buffer, and flip the
// skip/terminate control flags. Include files have no Context at all (no
// `line`, no per-line control flow), so they are bound with a nil
// StageContext; emit/skip/exit are simply not predeclared for them.
type StageContext interface {
	Emit(line string)
	Skip()
	Exit(message string, hasMessage bool)
}

// Env carries the run-scoped collaborators every builtin closes over: the
// Global Store (for inc/glob) and a regexp cache (for regex_match/replace).
// One Env is shared by every Stage and every line of a run.
type Env struct {
	Store *store.Store
	regex *regexCache
}

func NewEnv(s *store.Store) *Env {
	return &Env{Store: s, regex: newRegexCache()}
}
