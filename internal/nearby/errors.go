package nearby

import "fmt"

// ValidationError reports malformed or out-of-range query input. It always
// names the offending field so the HTTP layer can surface it to the client.
// Validation failures are local to the caller and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DependencyError wraps a failure of the place store or another upstream
// dependency. The core never retries these; retry policy belongs to the
// caller, and the wrapped cause is kept for logs but not exposed to clients.
type DependencyError struct {
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency failure: %v", e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
