// services/history_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/persistence"
)

// HistoryService records finished games and answers history queries.
type HistoryService struct {
	db      persistence.Database
	timeout time.Duration
	wg      sync.WaitGroup
	onSaved func(models.GameRecord)
}

func NewHistoryService(db persistence.Database) *HistoryService {
	return &HistoryService{db: db, timeout: 5 * time.Second}
}

// OnSaved registers a callback run after each successful write.
func (s *HistoryService) OnSaved(fn func(models.GameRecord)) {
	s.onSaved = fn
}

// Record persists result in the background. It is safe to call from a room
// hook, which must not block.
func (s *HistoryService) Record(result models.GameResult) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		record, err := s.db.SaveGameRecord(ctx, result)
		if err != nil {
			logger.Log.Errorw("save game record", "room", result.RoomID, "variant", result.Variant, "error", err)
			return
		}
		logger.Log.Infow("game recorded", "room", result.RoomID, "id", record.ID, "winners", result.Winners)
		if s.onSaved != nil {
			s.onSaved(record)
		}
	}()
}

// Wait blocks until pending writes finish.
func (s *HistoryService) Wait() {
	s.wg.Wait()
}

func (s *HistoryService) Recent(ctx context.Context, variant models.Variant, limit int) ([]models.GameRecord, error) {
	return s.db.RecentGames(ctx, variant, persistence.ClampLimit(limit))
}

func (s *HistoryService) Game(ctx context.Context, id uint) (models.GameRecord, error) {
	return s.db.GetGameRecord(ctx, id)
}

// PlayerHistory 获取玩家信息和统计: recent games plus aggregate stats.
func (s *HistoryService) PlayerHistory(ctx context.Context, name string, limit int) (models.PlayerStats, []models.GameRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.PlayerStats{}, nil, models.ErrValidationFailed
	}
	stats, err := s.db.GetPlayerStats(ctx, name)
	if err != nil {
		return models.PlayerStats{}, nil, err
	}
	games, err := s.db.PlayerGames(ctx, name, persistence.ClampLimit(limit))
	if err != nil {
		return models.PlayerStats{}, nil, err
	}
	return stats, games, nil
}

// Close waits for pending writes, then closes the store.
func (s *HistoryService) Close() error {
	s.wg.Wait()
	return s.db.Close()
}
