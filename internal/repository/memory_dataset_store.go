package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
)

// MemoryDatasetStore keeps dataset rows in process memory.
type MemoryDatasetStore struct {
	mu   sync.RWMutex
	rows map[string][]models.MarketRecord
}

func NewMemoryDatasetStore() *MemoryDatasetStore {
	return &MemoryDatasetStore{rows: make(map[string][]models.MarketRecord)}
}

func (s *MemoryDatasetStore) SaveMarketData(_ context.Context, ticker string, records []models.MarketRecord) error {
	cp := make([]models.MarketRecord, len(records))
	for i, r := range records {
		r.Ticker = ticker
		cp[i] = r
	}
	sort.SliceStable(cp, func(a, b int) bool { return cp[a].Date.Before(cp[b].Date) })
	s.mu.Lock()
	s.rows[ticker] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryDatasetStore) GetMarketData(_ context.Context, ticker string) ([]models.MarketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.rows[ticker]
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("market data %s: %w", ticker, domrepo.ErrNotFound)
	}
	return append([]models.MarketRecord(nil), rows...), nil
}

func (s *MemoryDatasetStore) Health(context.Context) error { return nil }

func (s *MemoryDatasetStore) Close() error { return nil }

var _ domrepo.DatasetStore = (*MemoryDatasetStore)(nil)
