// Package store keeps rendered artifacts (wav files, traces) so that they
// can be fetched after the job that produced them has finished.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when there is nothing stored under a key.
var ErrNotFound = errors.New("artifact not found")

// Store is a key-value store for artifacts. Keys are slash separated, e.g.
// "results/<job id>/wav".
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ResultKey returns the key of an artifact of a job.
func ResultKey(jobID, artifact string) string {
	return "results/" + jobID + "/" + artifact
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), d...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ret []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			ret = append(ret, k)
		}
	}
	sort.Strings(ret)
	return ret, nil
}
