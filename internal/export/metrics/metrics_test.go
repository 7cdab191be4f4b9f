package metrics

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vietddude/exporter/internal/core/domain"
)

func TestFailureObserver(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	counter := ExportErrorsTotal.WithLabelValues(string(domain.FailureRateLimitExceeded))
	before := testutil.ToFloat64(counter)

	FailureObserver(log)(domain.FailureRateLimitExceeded, "too many requests")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("counter increased by %v, want 1", got)
	}
	out := buf.String()
	if !strings.Contains(out, "dataexport.error") || !strings.Contains(out, "too many requests") {
		t.Errorf("unexpected log output: %s", out)
	}
}
