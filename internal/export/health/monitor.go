package health

import (
	"context"
	"sync"
	"time"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// DepthReader reports how many jobs are waiting.
type DepthReader interface {
	Len(ctx context.Context) (int64, error)
}

const (
	defaultCacheTTL    = 10 * time.Second
	queueDegradedDepth = 1000
)

// Monitor aggregates health status from various system components.
type Monitor struct {
	components map[string]Pinger
	queue      DepthReader
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. q may be nil.
func NewMonitor(components map[string]Pinger, q DepthReader) *Monitor {
	return &Monitor{
		components: components,
		queue:      q,
		cacheTTL:   defaultCacheTTL,
	}
}

// CheckHealth checks every component. Results are cached briefly so that
// frequent probes don't hammer the backends.
func (m *Monitor) CheckHealth(ctx context.Context) *HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return m.lastReport
	}

	report := &HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.components)),
	}

	for name, p := range m.components {
		ch := ComponentHealth{Name: name, Status: StatusHealthy}
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := p.Health(checkCtx); err != nil {
			ch.Status = StatusCritical
			ch.Error = err.Error()
		}
		cancel()
		report.Components[name] = ch
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	if m.queue != nil {
		depth, err := m.queue.Len(ctx)
		if err != nil {
			report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
		} else {
			report.QueueDepth = depth
			if depth > queueDegradedDepth {
				report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
			}
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
