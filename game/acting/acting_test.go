package acting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/partyserver/content"
	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/mocks"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

type harness struct {
	engine *Engine
	timers *timer.Manual
	rec    *game.Recorder
	rnd    *mocks.MockRandom
}

func newHarness(t *testing.T, settings models.ActingSettings) *harness {
	t.Helper()
	h := &harness{
		timers: timer.NewManual(),
		rec:    &game.Recorder{},
		rnd:    mocks.NewMockRandom(),
	}
	h.engine = New("ABCD", game.Env{
		Clock:          mocks.NewMockClock(time.Unix(1700000000, 0)),
		Random:         h.rnd,
		Timers:         h.timers,
		Out:            h.rec,
		Catalog:        content.Default(),
		TieBreak:       models.TieBreakRosterOrder,
		NextRoundDelay: 3 * time.Second,
	}, settings)
	return h
}

func defaultSettings() models.ActingSettings {
	return models.NewDefaultSettings().Acting
}

// readyPair joins P1 and P2 and readies both.
func (h *harness) readyPair(t *testing.T) {
	t.Helper()
	_, err := h.engine.Join("P1", "Alice")
	require.NoError(t, err)
	_, err = h.engine.Join("P2", "Bob")
	require.NoError(t, err)
	require.NoError(t, h.engine.SetReady("P1"))
	require.NoError(t, h.engine.SetReady("P2"))
}

func TestStart_RoundOneHasActorAndGuesser(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)

	require.NoError(t, h.engine.Start("P1"))

	assert.Equal(t, models.PhasePlaying, h.engine.Phase())
	assert.Equal(t, 1, h.engine.round)
	assert.NotEmpty(t, h.engine.actorID)
	assert.NotEmpty(t, h.engine.guesserID)
	assert.NotEqual(t, h.engine.actorID, h.engine.guesserID)
	assert.NotNil(t, h.engine.movie)
	assert.True(t, h.timers.Active(timer.PurposeRound))
}

func TestStart_NonHostIsRejected(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)

	err := h.engine.Start("P2")
	assert.ErrorIs(t, err, models.ErrNotAuthorized)
	assert.Equal(t, models.PhaseLobby, h.engine.Phase())
}

func TestStart_Preconditions(t *testing.T) {
	h := newHarness(t, defaultSettings())
	_, err := h.engine.Join("P1", "Alice")
	require.NoError(t, err)
	require.NoError(t, h.engine.SetReady("P1"))

	assert.ErrorIs(t, h.engine.Start("P1"), models.ErrPreconditionFailed)

	_, err = h.engine.Join("P2", "Bob")
	require.NoError(t, err)
	assert.ErrorIs(t, h.engine.Start("P1"), models.ErrPreconditionFailed)
	assert.Equal(t, models.PhaseLobby, h.engine.Phase())
}

func TestJoin_ThirdPlayerIsRejected(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)

	_, err := h.engine.Join("P3", "Carol")
	assert.ErrorIs(t, err, models.ErrRoomFull)
	assert.Equal(t, 2, h.engine.Roster().Len())
}

func TestJoin_RepeatReturnsSamePlayer(t *testing.T) {
	h := newHarness(t, defaultSettings())
	first, err := h.engine.Join("P1", "Alice")
	require.NoError(t, err)
	again, err := h.engine.Join("P1", "Alice")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, h.engine.Roster().Len())
}

func TestGuessed_ScoresBothAndAlternatesActor(t *testing.T) {
	settings := defaultSettings()
	settings.Rounds = 4
	h := newHarness(t, settings)
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))

	var actors []string
	for round := 1; round <= 4; round++ {
		require.Equal(t, round, h.engine.round)
		actors = append(actors, h.engine.actorID)

		guesser := h.engine.guesserID
		assert.ErrorIs(t, h.engine.Handle(guesser, ActionGuessed, nil), models.ErrInvalidTurn)
		require.NoError(t, h.engine.Handle(h.engine.actorID, ActionGuessed, nil))
		assert.False(t, h.timers.Active(timer.PurposeRound), "round timer must be cancelled with the phase")

		if round < 4 {
			assert.Equal(t, models.PhaseRoundComplete, h.engine.Phase())
			require.True(t, h.timers.Fire(timer.PurposeNextRound))
		}
	}

	for i := 1; i < len(actors); i++ {
		assert.NotEqual(t, actors[i-1], actors[i])
	}
	assert.Equal(t, models.PhaseGameOver, h.engine.Phase())

	p1, _ := h.engine.Players.Find("P1")
	p2, _ := h.engine.Players.Find("P2")
	assert.Equal(t, 4, p1.Score)
	assert.Equal(t, 4, p2.Score)

	res, ok := h.engine.Result()
	require.True(t, ok)
	assert.Equal(t, []string{"P1"}, res.Winners)
	assert.Equal(t, models.ReasonCompleted, res.Reason)
}

func TestSkip_ReplacesMovieOnly(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))

	actor, guesser := h.engine.actorID, h.engine.guesserID
	before := h.engine.movie.ID

	require.NoError(t, h.engine.Handle(actor, ActionSkip, nil))

	assert.NotEqual(t, before, h.engine.movie.ID)
	assert.Equal(t, actor, h.engine.actorID)
	assert.Equal(t, guesser, h.engine.guesserID)
	assert.Equal(t, models.PhasePlaying, h.engine.Phase())
	for _, p := range h.engine.Players.Players {
		assert.Zero(t, p.Score)
	}
}

func TestTimerExpiry_EndsRoundUnguessed(t *testing.T) {
	settings := defaultSettings()
	settings.TimeLimit = 3
	h := newHarness(t, settings)
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))

	fired := h.timers.FireUntilStopped(timer.PurposeRound, 10)

	assert.Equal(t, 3, fired)
	assert.Equal(t, models.PhaseRoundComplete, h.engine.Phase())
	require.Len(t, h.engine.history, 1)
	assert.False(t, h.engine.history[0].Guessed)
	assert.True(t, h.timers.Active(timer.PurposeNextRound))
}

func TestUnlimitedTime_ArmsNoTimer(t *testing.T) {
	settings := defaultSettings()
	settings.TimeLimit = 0
	h := newHarness(t, settings)
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))

	assert.Empty(t, h.timers.Pending())
}

func TestLeave_MidGameEndsGame(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))

	require.NoError(t, h.engine.Leave("P1"))

	assert.Equal(t, models.PhaseGameOver, h.engine.Phase())
	assert.Empty(t, h.timers.Pending())
	assert.True(t, h.engine.Players.IsHost("P2"))
	res, ok := h.engine.Result()
	require.True(t, ok)
	assert.Equal(t, models.ReasonPlayerLeft, res.Reason)
}

func TestStaleNextRoundAfterGameOverIsIgnored(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))
	require.NoError(t, h.engine.Handle(h.engine.actorID, ActionGuessed, nil))

	require.True(t, h.timers.Active(timer.PurposeNextRound))
	require.NoError(t, h.engine.Leave("P2"))
	assert.False(t, h.timers.Active(timer.PurposeNextRound))

	// a callback that was already dequeued must still be a no-op
	h.engine.nextRound()
	assert.Equal(t, models.PhaseGameOver, h.engine.Phase())
}

func TestSnapshot_HidesMovieFromGuesser(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))

	actorView := h.engine.Snapshot(h.engine.actorID).(View)
	guesserView := h.engine.Snapshot(h.engine.guesserID).(View)
	spectator := h.engine.Snapshot("").(View)

	assert.NotNil(t, actorView.CurrentMovie)
	assert.Nil(t, guesserView.CurrentMovie)
	assert.Nil(t, spectator.CurrentMovie)

	// round-started is a broadcast and must not carry the title
	evt, ok := h.rec.Last(models.EventRoundStarted)
	require.True(t, ok)
	_, hasMovie := evt.Payload.(map[string]any)["movie"]
	assert.False(t, hasMovie)
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.readyPair(t)

	assert.ErrorIs(t, h.engine.UpdateSettings("P2", json.RawMessage(`{"rounds":2}`)), models.ErrNotAuthorized)
	assert.ErrorIs(t, h.engine.UpdateSettings("P1", json.RawMessage(`{"rounds":0}`)), models.ErrValidationFailed)
	require.NoError(t, h.engine.UpdateSettings("P1", json.RawMessage(`{"rounds":2,"timeLimit":60}`)))
	assert.Equal(t, 2, h.engine.Settings().Rounds)
	assert.Equal(t, 60, h.engine.Settings().TimeLimit)

	require.NoError(t, h.engine.Start("P1"))
	assert.ErrorIs(t, h.engine.UpdateSettings("P1", json.RawMessage(`{"rounds":3}`)), models.ErrInvalidState)
}

func TestRematchFromGameOver(t *testing.T) {
	settings := defaultSettings()
	settings.Rounds = 1
	h := newHarness(t, settings)
	h.readyPair(t)
	require.NoError(t, h.engine.Start("P1"))
	require.NoError(t, h.engine.Handle(h.engine.actorID, ActionGuessed, nil))
	require.Equal(t, models.PhaseGameOver, h.engine.Phase())

	require.NoError(t, h.engine.Start("P1"))
	assert.Equal(t, 1, h.engine.round)
	_, ok := h.engine.Result()
	assert.False(t, ok)
	for _, p := range h.engine.Players.Players {
		assert.Zero(t, p.Score)
	}
}
