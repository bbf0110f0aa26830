package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/partyserver/content"
	"github.com/wfunc/partyserver/mocks"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

func newTestBase() (*Base, *Recorder) {
	rec := &Recorder{}
	b := NewBase("ROOM", Env{
		Clock:   mocks.NewMockClock(time.Unix(0, 0)),
		Random:  mocks.NewMockRandom(),
		Timers:  timer.NewManual(),
		Out:     rec,
		Catalog: content.Default(),
	})
	return &b, rec
}

func TestBase_JoinPlayerIsIdempotent(t *testing.T) {
	b, rec := newTestBase()

	p1, err := b.JoinPlayer("c1", "Alice", 2)
	require.NoError(t, err)
	assert.True(t, p1.IsHost)

	again, err := b.JoinPlayer("c1", "Alice", 2)
	require.NoError(t, err)
	assert.Same(t, p1, again)
	assert.Equal(t, 1, b.Players.Len())
	assert.Equal(t, []models.EventType{models.EventPlayerJoined}, rec.Types())
}

func TestBase_JoinPlayerCapacityAndName(t *testing.T) {
	b, _ := newTestBase()

	_, err := b.JoinPlayer("c1", "  ", 2)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = b.JoinPlayer("c1", "A", 2)
	require.NoError(t, err)
	_, err = b.JoinPlayer("c2", "B", 2)
	require.NoError(t, err)
	_, err = b.JoinPlayer("c3", "C", 2)
	assert.ErrorIs(t, err, models.ErrRoomFull)
}

func TestBase_RequireHost(t *testing.T) {
	b, _ := newTestBase()
	b.JoinPlayer("c1", "A", 0)
	b.JoinPlayer("c2", "B", 0)

	assert.NoError(t, b.RequireHost("c1"))
	assert.ErrorIs(t, b.RequireHost("c2"), models.ErrNotAuthorized)
	assert.ErrorIs(t, b.RequireHost("zz"), models.ErrNotFound)
}

func TestBase_RemovePlayerAnnouncesNewHost(t *testing.T) {
	b, rec := newTestBase()
	b.JoinPlayer("c1", "A", 0)
	b.JoinPlayer("c2", "B", 0)
	rec.Drain()

	_, err := b.RemovePlayer("c1")
	require.NoError(t, err)
	evt, ok := rec.Last(models.EventPlayerLeft)
	require.True(t, ok)
	assert.Equal(t, "c2", evt.Payload.(map[string]any)["hostId"])
	assert.True(t, b.Players.IsHost("c2"))
}

func TestDecodeSettings_DoesNotMutateCurrentOnFailure(t *testing.T) {
	current := models.ActingSettings{Rounds: 5, TimeLimit: 300, MovieCategories: []string{"hollywood", "bollywood"}}

	_, err := DecodeSettings(json.RawMessage(`{"movieCategories":["x"],"rounds":0}`), current)
	assert.ErrorIs(t, err, models.ErrValidationFailed)
	assert.Equal(t, []string{"hollywood", "bollywood"}, current.MovieCategories)

	next, err := DecodeSettings(json.RawMessage(`{"rounds":3}`), current)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Rounds)
	assert.Equal(t, 300, next.TimeLimit)
	assert.Equal(t, current.MovieCategories, next.MovieCategories)

	_, err = DecodeSettings(json.RawMessage(`{"rounds":"many"}`), current)
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}
