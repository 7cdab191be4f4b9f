package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/exporter/internal/core/domain"
)

type observed struct {
	kind    domain.FailureKind
	message string
}

func recorder() (*[]observed, Observer) {
	var calls []observed
	return &calls, func(kind domain.FailureKind, message string) {
		calls = append(calls, observed{kind, message})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		kind domain.FailureKind
		want string
	}{
		{domain.FailureOutsideRetention, MsgInvalidDateRange},
		{domain.FailureIllegalArgumentType, MsgInvalidArgument},
		{domain.FailureRateLimitExceeded, MsgQueryTimeout},
		{domain.FailureMemoryLimitExceeded, MsgQueryTimeout},
		{domain.FailureTooManySimultaneous, MsgQueryTimeout},
		{domain.FailureUnqualifiedQuery, MsgQueryFailed},
		{domain.FailureQueryExecutionError, MsgQueryFailed},
		{domain.FailureSchemaValidationError, MsgQueryFailed},
		{domain.FailureOther, MsgInternal},
		{domain.FailureMissingColumn, MsgInternal},
		{domain.FailureQuerySizeExceeded, MsgInternal},
		{domain.FailureExecutionTimeMaximum, MsgInternal},
		{domain.FailureDatasetSelection, MsgInternal},
		{domain.FailureConnectionFailed, MsgInternal},
		{domain.FailureKind("UnknownVendorError"), MsgInternal},
		{domain.FailureKind(""), MsgInternal},
	}

	for _, tt := range tests {
		if got := Classify(tt.kind); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRun_ReplacesEngineFailure(t *testing.T) {
	kinds := []domain.FailureKind{
		domain.FailureOutsideRetention,
		domain.FailureIllegalArgumentType,
		domain.FailureRateLimitExceeded,
		domain.FailureMemoryLimitExceeded,
		domain.FailureTooManySimultaneous,
		domain.FailureUnqualifiedQuery,
		domain.FailureQueryExecutionError,
		domain.FailureSchemaValidationError,
		domain.FailureOther,
		domain.FailureKind("UnknownVendorError"),
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			calls, observe := recorder()
			raw := &domain.QueryFailure{Kind: kind, Message: "boom"}

			_, err := Run(func() (int, error) { return 0, raw }, observe)

			var exportErr *domain.ExportError
			if !errors.As(err, &exportErr) {
				t.Fatalf("expected ExportError, got %T (%v)", err, err)
			}
			if exportErr.Message != Classify(kind) {
				t.Errorf("message = %q, want %q", exportErr.Message, Classify(kind))
			}
			var qf *domain.QueryFailure
			if errors.As(err, &qf) {
				t.Errorf("raw failure leaked through the guard")
			}
			if len(*calls) != 1 {
				t.Fatalf("observer called %d times, want 1", len(*calls))
			}
			if (*calls)[0] != (observed{kind, "boom"}) {
				t.Errorf("observer got %+v", (*calls)[0])
			}
		})
	}
}

func TestRun_OutsideRetentionScenario(t *testing.T) {
	calls, observe := recorder()

	_, err := Run(func() (struct{}, error) {
		return struct{}{}, &domain.QueryFailure{Kind: domain.FailureOutsideRetention, Message: "range too old"}
	}, observe)

	if err == nil || err.Error() != "Invalid date range. Please try a more recent date range." {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []observed{{domain.FailureOutsideRetention, "range too old"}}
	if len(*calls) != 1 || (*calls)[0] != want[0] {
		t.Errorf("observer calls = %+v, want %+v", *calls, want)
	}
}

func TestRun_WrappedEngineFailure(t *testing.T) {
	calls, observe := recorder()
	raw := &domain.QueryFailure{Kind: domain.FailureRateLimitExceeded, Message: "slow down"}

	_, err := Run(func() (string, error) {
		return "", fmt.Errorf("fetch page 3: %w", raw)
	}, observe)

	if err == nil || err.Error() != MsgQueryTimeout {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 1 {
		t.Errorf("observer called %d times, want 1", len(*calls))
	}
}

func TestRun_Success(t *testing.T) {
	calls, observe := recorder()

	got, err := Run(func() (int, error) { return 42, nil }, observe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if len(*calls) != 0 {
		t.Errorf("observer called on success")
	}
}

func TestRun_NonEngineErrorPassesThrough(t *testing.T) {
	calls, observe := recorder()
	diskErr := errors.New("disk full")

	_, err := Run(func() (int, error) { return 0, diskErr }, observe)

	if !errors.Is(err, diskErr) {
		t.Errorf("expected original error, got %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("observer called for non-engine error")
	}
}

func TestRun_NilObserver(t *testing.T) {
	_, err := Run(func() (int, error) {
		return 0, &domain.QueryFailure{Kind: domain.FailureOther}
	}, nil)
	if err == nil || err.Error() != MsgInternal {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_TypedNilFailure(t *testing.T) {
	var observed []domain.FailureKind
	_, err := Run(func() (int, error) {
		var qf *domain.QueryFailure
		return 0, qf
	}, func(kind domain.FailureKind, _ string) {
		observed = append(observed, kind)
	})

	var exportErr *domain.ExportError
	if !errors.As(err, &exportErr) || exportErr.Message != MsgInternal {
		t.Fatalf("expected %q, got %v", MsgInternal, err)
	}
	if len(observed) != 1 || observed[0] != domain.FailureOther {
		t.Errorf("observed = %v, want [%s]", observed, domain.FailureOther)
	}
}

func TestRunContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	got, err := RunContext(ctx, func(ctx context.Context) (string, error) {
		return ctx.Value(key{}).(string), nil
	}, nil)
	if err != nil || got != "v" {
		t.Errorf("RunContext = %q, %v", got, err)
	}
}
