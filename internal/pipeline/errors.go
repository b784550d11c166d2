package pipeline

import "fmt"

// ErrorKind names a class of pipeline failure.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindAlreadyResolved  ErrorKind = "already_resolved"
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindAnalysisFailure  ErrorKind = "analysis_failure"
	KindExecutionFailure ErrorKind = "execution_failure"
	KindInternalFailure  ErrorKind = "internal_failure"
)

// Error is the structured failure returned at the pipeline boundary.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
