package mmvdisk

import "fmt"

// ParseError reports tool output this package could not understand. A parse
// failure never emits partial records for the malformed block.
type ParseError struct {
	Command string // command whose output was being parsed
	Line    string // offending input line, if identifiable
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("parse %q: %s (line: %q)", e.Command, e.Msg, e.Line)
	}
	return fmt.Sprintf("parse %q: %s", e.Command, e.Msg)
}

// ExternalToolError reports a failed tool invocation: nonzero exit, timeout,
// or inability to start the process at all.
type ExternalToolError struct {
	Command  string
	ExitCode int
	Stderr   string
	Timeout  bool
	Err      error
}

func (e *ExternalToolError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out", e.Command)
	case e.Err != nil && e.ExitCode == 0:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("%s: exit %d: %s", e.Command, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("%s: exit %d", e.Command, e.ExitCode)
	}
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying. Timeouts are
// assumed transient; an explicit rejection by the tool is not.
func (e *ExternalToolError) Transient() bool { return e.Timeout }
