// Package guard turns query engine failures into messages that are safe to
// show to the user who requested an export.
package guard

import (
	"context"
	"errors"

	"github.com/vietddude/exporter/internal/core/domain"
)

// Rule maps a set of failure kinds to one user-facing message.
type Rule struct {
	Kinds   []domain.FailureKind
	Message string
}

const (
	MsgInvalidDateRange = "Invalid date range. Please try a more recent date range."
	MsgInvalidArgument  = "Invalid query. Argument to function is wrong type."
	MsgQueryTimeout     = "Query timeout. Please try again. If the problem persists try a smaller date range or fewer projects."
	MsgQueryFailed      = "Internal error. Your query failed to run."
	MsgInternal         = "Internal error. Please try again."
)

// Rules is evaluated top to bottom; the first rule containing the kind wins.
var Rules = []Rule{
	{
		Kinds:   []domain.FailureKind{domain.FailureOutsideRetention},
		Message: MsgInvalidDateRange,
	},
	{
		Kinds:   []domain.FailureKind{domain.FailureIllegalArgumentType},
		Message: MsgInvalidArgument,
	},
	{
		Kinds: []domain.FailureKind{
			domain.FailureRateLimitExceeded,
			domain.FailureMemoryLimitExceeded,
			domain.FailureTooManySimultaneous,
		},
		Message: MsgQueryTimeout,
	},
	{
		Kinds: []domain.FailureKind{
			domain.FailureUnqualifiedQuery,
			domain.FailureQueryExecutionError,
			domain.FailureSchemaValidationError,
		},
		Message: MsgQueryFailed,
	},
}

// Observer is told about every engine failure before it is replaced.
type Observer func(kind domain.FailureKind, message string)

// Classify returns the user-facing message for a failure kind. Kinds with no
// rule get MsgInternal.
func Classify(kind domain.FailureKind) string {
	for _, r := range Rules {
		for _, k := range r.Kinds {
			if k == kind {
				return r.Message
			}
		}
	}
	return MsgInternal
}

// Run executes op. An engine failure returned by op is reported to observe
// once and replaced by a *domain.ExportError; the original failure is not
// wrapped. Errors that did not come from the engine pass through untouched.
func Run[T any](op func() (T, error), observe Observer) (T, error) {
	v, err := op()
	if err == nil {
		return v, nil
	}
	var zero T
	return zero, translate(err, observe)
}

// RunContext is Run for operations that take a context.
func RunContext[T any](ctx context.Context, op func(context.Context) (T, error), observe Observer) (T, error) {
	return Run(func() (T, error) { return op(ctx) }, observe)
}

func translate(err error, observe Observer) error {
	var qf *domain.QueryFailure
	if !errors.As(err, &qf) {
		return err
	}
	kind, message := domain.FailureOther, "nil query failure"
	if qf != nil {
		kind, message = qf.Kind, qf.Message
	}
	if observe != nil {
		observe(kind, message)
	}
	return &domain.ExportError{Message: Classify(kind)}
}
