package stage

// Result is the outcome of a lifecycle phase. It is the only channel by which
// a stage reports expected failures.
type Result int

const (
	Success Result = iota
	InvalidOptions
	InputError
	OutputError
	Failed
	Created
	Initialized
)

// Process exit codes.
const (
	ExitSuccess        = 0
	ExitInvalidOptions = 1
	ExitInputError     = 2
	ExitOutputError    = 3
	ExitFailed         = 90
	ExitUnhandled      = 99
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidOptions:
		return "invalid options"
	case InputError:
		return "input error"
	case OutputError:
		return "output error"
	case Failed:
		return "failed"
	case Created:
		return "created"
	case Initialized:
		return "initialized"
	}
	return "unknown"
}

// ExitCode maps a terminal result to a process exit code. Created and
// Initialized are not terminal; a run that stops in either state failed.
func (r Result) ExitCode() int {
	switch r {
	case Success:
		return ExitSuccess
	case InvalidOptions:
		return ExitInvalidOptions
	case InputError:
		return ExitInputError
	case OutputError:
		return ExitOutputError
	}
	return ExitFailed
}

// OK reports whether r allows the next phase to run.
func (r Result) OK() bool { return r == Success }
