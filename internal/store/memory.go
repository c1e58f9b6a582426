package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by the "memory" backend for throwaway servers.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	events  []ConversionEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Create(ctx context.Context, key string, data []byte) (*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; ok {
		return nil, ErrExists
	}
	rec := &Record{Key: key, Version: 1, Data: append([]byte(nil), data...)}
	s.records[key] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, expected uint64, data []byte, events ...ConversionEvent) (*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Version != expected {
		return nil, ErrConflict
	}
	next := &Record{Key: key, Version: expected + 1, Data: append([]byte(nil), data...)}
	s.records[key] = next
	s.events = append(s.events, events...)
	return copyRecord(next), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, copyRecord(rec))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

func (s *MemoryStore) Append(ctx context.Context, event ConversionEvent) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) Events(ctx context.Context, experimentID string) ([]ConversionEvent, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []ConversionEvent
	// Walk backwards so the result is newest first.
	for i := len(s.events) - 1; i >= 0; i-- {
		if experimentID == "" || s.events[i].ExperimentID == experimentID {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(r *Record) *Record {
	return &Record{Key: r.Key, Version: r.Version, Data: append([]byte(nil), r.Data...)}
}
