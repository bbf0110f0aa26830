// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/partyserver/models"
)

// Memory keeps game records in process. It backs the server when no
// database is configured.
type Memory struct {
	mu      sync.RWMutex
	records []models.GameRecord
	nextID  uint
}

var _ Database = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) SaveGameRecord(_ context.Context, result models.GameResult) (models.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := models.NewGormGameRecord(result).Record()
	record.ID = m.nextID
	m.nextID++
	m.records = append(m.records, record)
	return record, nil
}

func (m *Memory) GetGameRecord(_ context.Context, id uint) (models.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.GameRecord{}, ErrRecordNotFound
}

func (m *Memory) RecentGames(_ context.Context, variant models.Variant, limit int) ([]models.GameRecord, error) {
	return m.newest(limit, func(r models.GameRecord) bool {
		return variant == "" || r.Variant == variant
	}), nil
}

func (m *Memory) PlayerGames(_ context.Context, name string, limit int) ([]models.GameRecord, error) {
	return m.newest(limit, func(r models.GameRecord) bool {
		_, ok := r.PlayedBy(name)
		return ok
	}), nil
}

func (m *Memory) GetPlayerStats(_ context.Context, name string) (models.PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.StatsFor(name, m.records), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) newest(limit int, keep func(models.GameRecord) bool) []models.GameRecord {
	m.mu.RLock()
	var out []models.GameRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FinishedAt.Equal(out[j].FinishedAt) {
			return out[i].FinishedAt.After(out[j].FinishedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit = ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}
