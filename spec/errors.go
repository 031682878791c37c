package spec

import "fmt"

// Invalid is raised synchronously whenever a Control Specification fails a
// structural invariant at construction time (§4.2). It never reaches the
// compiler or engine — SpecInvalid does not produce an Execution Report.
type Invalid struct {
	Reason string
	Path   string
}

func (e *Invalid) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("spec invalid: %s", e.Reason)
	}
	return fmt.Sprintf("spec invalid at %s: %s", e.Path, e.Reason)
}

func invalid(path, format string, args ...interface{}) error {
	return &Invalid{Path: path, Reason: fmt.Sprintf(format, args...)}
}
