package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and the "memory"
// storage driver for running without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	samples     []MetricsSample
	transitions []StateTransition
	validations map[int64]ValidationRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		validations: make(map[int64]ValidationRecord),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) WriteSample(_ context.Context, sample MetricsSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *MemoryStore) WriteTransition(_ context.Context, transition StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, transition)
	return nil
}

func (s *MemoryStore) UpsertValidation(_ context.Context, record ValidationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations[record.LedgerSeq] = record
	return nil
}

func (s *MemoryStore) ValidationStats(_ context.Context, windowHours int) (*WindowStats, error) {
	cutoff := time.Now().Add(-time.Duration(windowHours) * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &WindowStats{WindowHours: windowHours}
	for _, record := range s.validations {
		if record.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalChecked++
		if record.DidValidate && record.Agreed {
			stats.AgreedCount++
		}
		if record.ShouldValidate && !record.DidValidate {
			stats.MissedCount++
		}
	}

	if stats.TotalChecked > 0 {
		stats.AgreementRatePct = float64(stats.AgreedCount) / float64(stats.TotalChecked) * 100
	}
	return stats, nil
}

func (s *MemoryStore) RecentSamples(_ context.Context, limit int) ([]MetricsSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make([]MetricsSample, 0, limit)
	for i := len(s.samples) - 1; i >= 0 && len(samples) < limit; i-- {
		samples = append(samples, s.samples[i])
	}
	return samples, nil
}

func (s *MemoryStore) RecentTransitions(_ context.Context, limit int) ([]StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transitions := make([]StateTransition, 0, limit)
	for i := len(s.transitions) - 1; i >= 0 && len(transitions) < limit; i-- {
		transitions = append(transitions, s.transitions[i])
	}
	return transitions, nil
}

// ValidationCount reports how many distinct ledger sequences have records.
func (s *MemoryStore) ValidationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.validations)
}

// Validation returns the stored record for a ledger sequence, if any.
func (s *MemoryStore) Validation(ledgerSeq int64) (ValidationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.validations[ledgerSeq]
	return record, ok
}
