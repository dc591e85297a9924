package journal

import (
	"context"
	"sort"
	"sync"
)

type inMemoryJournal struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemory creates a concurrency-safe in-memory journal useful for unit tests.
func NewInMemory() Journal {
	return &inMemoryJournal{entries: make(map[string]Entry)}
}

func (j *inMemoryJournal) EnsureSchema(context.Context) error { return nil }

func (j *inMemoryJournal) Begin(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.entries[entry.ID]; exists {
		return ErrDuplicateSubmission
	}
	if entry.Status == "" {
		entry.Status = StatusSubmitting
	}
	entry.Messages = append([]string(nil), entry.Messages...)
	j.entries[entry.ID] = entry
	return nil
}

func (j *inMemoryJournal) Complete(_ context.Context, id string, c Completion) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[id]
	if !ok {
		return ErrNotFound
	}
	completedAt := c.CompletedAt
	entry.Status = c.Status
	entry.Reason = c.Reason
	entry.Messages = append([]string(nil), c.Messages...)
	entry.CompletedAt = &completedAt
	j.entries[id] = entry
	return nil
}

func (j *inMemoryJournal) Get(_ context.Context, id string) (Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	entry, ok := j.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (j *inMemoryJournal) List(_ context.Context, accountID string, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Entry
	for _, e := range j.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
