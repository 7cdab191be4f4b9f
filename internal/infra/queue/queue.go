// Package queue defines the export job queue and an in-process
// implementation.
package queue

import (
	"context"
	"sync"
)

// Queue hands export job IDs to workers.
type Queue interface {
	// Push enqueues a job
	Push(ctx context.Context, jobID string) error

	// Pop dequeues the oldest job; found is false when nothing is ready
	Pop(ctx context.Context) (jobID string, found bool, err error)

	// Ack marks a popped job as done with
	Ack(ctx context.Context, jobID string) error

	// Len returns the number of queued jobs
	Len(ctx context.Context) (int64, error)
}

// Memory is a mutex protected FIFO queue.
type Memory struct {
	mu       sync.Mutex
	items    []string
	queued   map[string]bool
	inflight map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		queued:   make(map[string]bool),
		inflight: make(map[string]bool),
	}
}

func (m *Memory) Push(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queued[jobID] {
		return nil
	}
	m.queued[jobID] = true
	m.items = append(m.items, jobID)
	return nil
}

func (m *Memory) Pop(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.items) > 0 {
		id := m.items[0]
		m.items = m.items[1:]
		delete(m.queued, id)
		if m.inflight[id] {
			continue
		}
		m.inflight[id] = true
		return id, true, nil
	}
	return "", false, nil
}

func (m *Memory) Ack(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, jobID)
	return nil
}

func (m *Memory) Len(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}
