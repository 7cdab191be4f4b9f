package postgres

import (
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vietddude/exporter/internal/export/metrics"
)

func TestPoolLimits(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantOpen int
		wantIdle int
	}{
		{"defaults", Config{}, 10, 2},
		{"configured", Config{MaxConns: 20, MinConns: 5}, 20, 5},
		{"idle capped by open", Config{MaxConns: 3, MinConns: 8}, 3, 3},
		{"default idle capped by open", Config{MaxConns: 1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, idle := poolLimits(tt.cfg)
			if open != tt.wantOpen || idle != tt.wantIdle {
				t.Errorf("poolLimits = (%d, %d), want (%d, %d)", open, idle, tt.wantOpen, tt.wantIdle)
			}
		})
	}
}

func TestRecordPoolStats(t *testing.T) {
	before := testutil.ToFloat64(metrics.DBConnectionWaits)

	last := recordPoolStats(sql.DBStats{MaxOpenConnections: 10, InUse: 4, WaitCount: 3}, 0)
	if got := testutil.ToFloat64(metrics.DBConnectionPoolUsage); got != 40 {
		t.Errorf("pool usage = %v, want 40", got)
	}
	if last != 3 {
		t.Errorf("last waits = %d, want 3", last)
	}

	last = recordPoolStats(sql.DBStats{MaxOpenConnections: 10, InUse: 1, WaitCount: 5}, last)
	if got := testutil.ToFloat64(metrics.DBConnectionWaits) - before; got != 5 {
		t.Errorf("waits added = %v, want 5", got)
	}
	if last != 5 {
		t.Errorf("last waits = %d, want 5", last)
	}

	// unlimited pool leaves the gauge untouched
	recordPoolStats(sql.DBStats{InUse: 7, WaitCount: 5}, last)
	if got := testutil.ToFloat64(metrics.DBConnectionPoolUsage); got != 10 {
		t.Errorf("pool usage = %v, want 10", got)
	}
}
