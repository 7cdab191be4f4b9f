package domain

import "fmt"

// FailureKind is the category a query engine reports for a failed query.
type FailureKind string

const (
	FailureOutsideRetention      FailureKind = "OutsideRetention"
	FailureIllegalArgumentType   FailureKind = "IllegalArgumentType"
	FailureRateLimitExceeded     FailureKind = "RateLimitExceeded"
	FailureMemoryLimitExceeded   FailureKind = "MemoryLimitExceeded"
	FailureTooManySimultaneous   FailureKind = "TooManySimultaneous"
	FailureUnqualifiedQuery      FailureKind = "UnqualifiedQuery"
	FailureQueryExecutionError   FailureKind = "QueryExecutionError"
	FailureSchemaValidationError FailureKind = "SchemaValidationError"
	FailureOther                 FailureKind = "Other"

	// Recognized engine failures without a dedicated user message.
	FailureMissingColumn        FailureKind = "MissingColumn"
	FailureQuerySizeExceeded    FailureKind = "QuerySizeExceeded"
	FailureExecutionTimeMaximum FailureKind = "ExecutionTimeMaximum"
	FailureDatasetSelection     FailureKind = "DatasetSelection"
	FailureConnectionFailed     FailureKind = "ConnectionFailed"
)

// QueryFailure is an error raised by the query engine. It never leaves the
// export guard; callers above it only see ExportError.
type QueryFailure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *QueryFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *QueryFailure) Unwrap() error {
	return e.Err
}

// NewQueryFailure builds a QueryFailure with a formatted message.
func NewQueryFailure(kind FailureKind, format string, args ...any) *QueryFailure {
	return &QueryFailure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ExportError carries a message that is safe to show to the user who asked
// for the export.
type ExportError struct {
	Message string
}

func (e *ExportError) Error() string {
	return e.Message
}
