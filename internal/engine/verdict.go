package engine

// VerdictKind tags a Stage's outcome for one line.
type VerdictKind int

const (
	// Keep continues processing with Line as the current line.
	Keep VerdictKind = iota
	// Drop stops processing this line; no output is recorded for it.
	Drop
	// Terminate finishes flushing buffered emits, then stops all further
	// input consumption.
	Terminate
	// Fail means the stage raised; the Pipeline's error policy decides
	// whether to drop the line or abort the run.
	Fail
)

// Verdict is a Stage's outcome for one line.
type Verdict struct {
	Kind VerdictKind

	Line string // valid when Kind == Keep

	Message    string // valid when Kind == Terminate, if HasMessage
	HasMessage bool

	Err error // valid when Kind == Fail
}

func KeepVerdict(line string) Verdict { return Verdict{Kind: Keep, Line: line} }
func DropVerdict() Verdict            { return Verdict{Kind: Drop} }

func TerminateVerdict(message string, hasMessage bool) Verdict {
	return Verdict{Kind: Terminate, Message: message, HasMessage: hasMessage}
}

func FailVerdict(err error) Verdict { return Verdict{Kind: Fail, Err: err} }
