package cache

import (
	"context"
	"sync"
	"time"

	"github.com/frandy73/Lumina/internal/domain"
)

type memEntry struct {
	docs    []domain.Document
	gen     int64
	expires time.Time
}

// Memory is a process-local DocumentCache with a fixed TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memEntry
	gens    map[string]int64
	now     func() time.Time
}

// NewMemory returns a cache whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memEntry),
		gens:    make(map[string]int64),
		now:     time.Now,
	}
}

func (m *Memory) GetList(_ context.Context, ownerID string) (Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen := m.gens[ownerID]
	e, ok := m.entries[ownerID]
	if !ok || e.gen != gen {
		return Lookup{Generation: gen}, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, ownerID)
		return Lookup{Generation: gen}, nil
	}
	return Lookup{Docs: append([]domain.Document(nil), e.docs...), Hit: true, Generation: gen}, nil
}

func (m *Memory) SetList(_ context.Context, ownerID string, gen int64, docs []domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[ownerID] != gen {
		return nil
	}
	m.entries[ownerID] = memEntry{docs: strip(docs), gen: gen, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, ownerID)
	m.gens[ownerID]++
	return nil
}
