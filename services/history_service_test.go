package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/persistence"
)

type failingDB struct {
	*persistence.Memory
}

func (failingDB) SaveGameRecord(context.Context, models.GameResult) (models.GameRecord, error) {
	return models.GameRecord{}, errors.New("connection refused")
}

func result(room string, finished time.Time) models.GameResult {
	return models.GameResult{
		RoomID:     room,
		Variant:    models.VariantCards,
		Standings:  []models.Standing{{ID: "p1", Name: "Alice", Score: 120}, {ID: "p2", Name: "Bob", Score: 0}},
		Winners:    []string{"p1"},
		Reason:     models.ReasonCompleted,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}
}

func TestHistoryService_RecordAndQuery(t *testing.T) {
	svc := NewHistoryService(persistence.NewMemory())
	var saved []models.GameRecord
	svc.OnSaved(func(r models.GameRecord) { saved = append(saved, r) })

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.Record(result("AAAA", now))
	svc.Wait()
	svc.Record(result("BBBB", now.Add(time.Minute)))
	svc.Wait()
	require.Len(t, saved, 2)

	recent, err := svc.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "BBBB", recent[0].RoomID)

	stats, games, err := svc.PlayerHistory(context.Background(), "Alice", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Games)
	assert.Equal(t, 2, stats.Wins)
	assert.Len(t, games, 1)

	game, err := svc.Game(context.Background(), saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", game.RoomID)

	require.NoError(t, svc.Close())
}

func TestHistoryService_PlayerHistoryNeedsName(t *testing.T) {
	svc := NewHistoryService(persistence.NewMemory())
	_, _, err := svc.PlayerHistory(context.Background(), "", 5)
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestHistoryService_SaveFailureIsLogged(t *testing.T) {
	svc := NewHistoryService(failingDB{persistence.NewMemory()})
	called := false
	svc.OnSaved(func(models.GameRecord) { called = true })

	svc.Record(result("AAAA", time.Now()))
	svc.Wait()

	assert.False(t, called)
}
