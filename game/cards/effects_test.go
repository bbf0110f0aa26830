package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

func ids(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func reds(n int) []models.Card {
	out := make([]models.Card, n)
	for i := range out {
		out[i] = num(models.ColorRed, i+1)
	}
	return out
}

func TestMirror(t *testing.T) {
	h := started(t, defaultSettings())
	m := unique(models.UniqueMirror)
	h.setHands(append([]models.Card{m}, reds(2)...), reds(1))

	require.NoError(t, h.play("P1", m))

	assert.Len(t, h.engine.hands["P2"], 3)
	assert.Equal(t, "P2", h.engine.currentPlayer())
}

func TestShield_ReflectsMirror(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	m := unique(models.UniqueMirror)
	h.setHands(append([]models.Card{m}, reds(2)...), reds(1))
	e.shields["P2"] = true

	require.NoError(t, h.play("P1", m))

	assert.Len(t, e.hands["P1"], 4)
	assert.Len(t, e.hands["P2"], 1)
	assert.False(t, e.shields["P2"], "shield is one-shot")
}

func TestShield_Arms(t *testing.T) {
	h := started(t, defaultSettings())
	sh := unique(models.UniqueShield)
	h.setHands(append([]models.Card{sh}, reds(1)...), reds(2))

	require.NoError(t, h.play("P1", sh))

	assert.True(t, h.engine.shields["P1"])
	assert.Equal(t, "P2", h.engine.currentPlayer())
	assert.Contains(t, h.engine.Snapshot("P2").(View).Shields, "P1")
}

func TestSwapHands(t *testing.T) {
	h := started(t, defaultSettings())
	s := unique(models.UniqueSwapHands)
	mine, theirs := reds(2), reds(1)
	h.setHands(append([]models.Card{s}, mine...), theirs)

	require.NoError(t, h.play("P1", s))

	assert.Equal(t, ids(theirs), ids(h.engine.hands["P1"]))
	assert.Equal(t, ids(mine), ids(h.engine.hands["P2"]))
}

func TestSwapHands_BlockedByShield(t *testing.T) {
	h := started(t, defaultSettings())
	s := unique(models.UniqueSwapHands)
	mine, theirs := reds(2), reds(1)
	h.setHands(append([]models.Card{s}, mine...), theirs)
	h.engine.shields["P2"] = true

	require.NoError(t, h.play("P1", s))

	assert.Equal(t, ids(mine), ids(h.engine.hands["P1"]))
	assert.Equal(t, ids(theirs), ids(h.engine.hands["P2"]))
	assert.False(t, h.engine.shields["P2"])
}

func TestDuel(t *testing.T) {
	cases := []struct {
		name       string
		mine       models.Card
		theirs     models.Card
		wantP1     int
		wantP2     int
		wantPlayer string
	}{
		{"player wins and replays", num(models.ColorRed, 9), num(models.ColorBlue, 2), 1, 3, "P1"},
		{"opponent wins", num(models.ColorRed, 1), num(models.ColorBlue, 8), 3, 1, "P2"},
		{"tie both draw", num(models.ColorRed, 4), num(models.ColorBlue, 4), 3, 3, "P2"},
		{"non-number both draw", action(models.CardSkip, models.ColorRed), num(models.ColorBlue, 4), 3, 3, "P2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := started(t, defaultSettings())
			d := unique(models.UniqueDuel)
			h.setHands([]models.Card{d, tc.mine}, []models.Card{tc.theirs})

			require.NoError(t, h.play("P1", d))

			assert.Len(t, h.engine.hands["P1"], tc.wantP1)
			assert.Len(t, h.engine.hands["P2"], tc.wantP2)
			assert.Equal(t, tc.wantPlayer, h.engine.currentPlayer())
		})
	}
}

func TestFinalStand(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	fs := unique(models.UniqueFinalStand)
	h.setHands(append([]models.Card{fs}, reds(3)...), reds(1))
	top := e.top()

	assert.ErrorIs(t, h.play("P1", fs), models.ErrPreconditionFailed)
	assert.Len(t, e.hands["P1"], 4)
	assert.Equal(t, top.ID, e.top().ID)

	h.setHands(append([]models.Card{fs}, reds(2)...), reds(1))
	require.NoError(t, h.play("P1", fs))
	assert.Len(t, e.hands["P2"], 3)
}

func TestDoubleDown_WithPair(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	dd := unique(models.UniqueDoubleDown)
	r3, b3, keep := num(models.ColorRed, 3), num(models.ColorBlue, 3), num(models.ColorGreen, 8)
	h.setHands([]models.Card{dd, r3, b3, keep}, reds(1))
	total := e.CardCount()

	require.NoError(t, e.Handle("P1", ActionPlay, mustJSON(Play{CardID: dd.ID, PairCardIDs: []string{r3.ID, b3.ID}})))

	assert.Equal(t, []string{keep.ID}, ids(e.hands["P1"]))
	assert.Len(t, e.hands["P2"], 5)
	n := len(e.discard)
	assert.Equal(t, dd.ID, e.discard[n-1].ID)
	assert.ElementsMatch(t, []string{r3.ID, b3.ID}, ids(e.discard[n-3:n-1]))
	assert.Equal(t, total, e.CardCount())
}

func TestDoubleDown_RejectsBadPairs(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	dd := unique(models.UniqueDoubleDown)
	r3, b4, skip := num(models.ColorRed, 3), num(models.ColorBlue, 4), action(models.CardSkip, models.ColorRed)
	h.setHands([]models.Card{dd, r3, b4, skip}, reds(1))

	playPair := func(a, b string) error {
		return e.Handle("P1", ActionPlay, mustJSON(Play{CardID: dd.ID, PairCardIDs: []string{a, b}}))
	}
	assert.ErrorIs(t, playPair(r3.ID, b4.ID), models.ErrValidationFailed)
	assert.ErrorIs(t, playPair(r3.ID, skip.ID), models.ErrValidationFailed)
	assert.ErrorIs(t, playPair(r3.ID, dd.ID), models.ErrNotFound)
	assert.ErrorIs(t, playPair(r3.ID, r3.ID), models.ErrValidationFailed)
	assert.Len(t, e.hands["P1"], 4)
	assert.Len(t, e.hands["P2"], 1)
	assert.Equal(t, "P1", e.currentPlayer())
}

func TestDoubleDown_AloneJustPasses(t *testing.T) {
	h := started(t, defaultSettings())
	dd := unique(models.UniqueDoubleDown)
	h.setHands(append([]models.Card{dd}, reds(2)...), reds(1))

	require.NoError(t, h.play("P1", dd))

	assert.Len(t, h.engine.hands["P2"], 1)
	assert.Equal(t, "P2", h.engine.currentPlayer())
}

func TestRevenge(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	rv := unique(models.UniqueRevenge)
	h.setHands(append([]models.Card{rv}, reds(1)...), reds(1))

	assert.ErrorIs(t, h.play("P1", rv), models.ErrPreconditionFailed, "nothing to answer")

	e.lastPlay = &LastPlay{PlayerID: "P1", Card: action(models.CardDrawTwo, models.ColorBlue)}
	assert.ErrorIs(t, h.play("P1", rv), models.ErrPreconditionFailed, "own card")

	e.lastPlay = &LastPlay{PlayerID: "P2", Card: num(models.ColorBlue, 5)}
	assert.ErrorIs(t, h.play("P1", rv), models.ErrPreconditionFailed, "number card")

	e.lastPlay = &LastPlay{PlayerID: "P2", Card: action(models.CardDrawTwo, models.ColorBlue)}
	require.NoError(t, h.play("P1", rv))
	assert.Len(t, e.hands["P2"], 5)
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Equal(t, models.ColorBlue, e.color)
}

func TestRevenge_SkipTwiceKeepsTurn(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	rv := unique(models.UniqueRevenge)
	h.setHands(append([]models.Card{rv}, reds(1)...), reds(1))
	e.lastPlay = &LastPlay{PlayerID: "P2", Card: action(models.CardSkip, models.ColorGreen)}

	require.NoError(t, h.play("P1", rv))

	assert.Equal(t, "P1", e.currentPlayer())
	assert.Equal(t, models.ColorGreen, e.color)
}

func armTimeBomb(t *testing.T, h *harness) {
	t.Helper()
	tb := unique(models.UniqueTimeBomb)
	h.setHands(append([]models.Card{tb}, reds(2)...), reds(2))
	require.NoError(t, h.play("P1", tb))
	require.NotNil(t, h.engine.pending)
	require.Equal(t, "P2", h.engine.pending.PlayerID)
	require.Equal(t, "P2", h.engine.currentPlayer())
}

func TestTimeBomb_DefusedByPlaying(t *testing.T) {
	h := started(t, defaultSettings())
	armTimeBomb(t, h)

	require.NoError(t, h.play("P2", h.engine.hands["P2"][0]))

	assert.Nil(t, h.engine.pending)
	assert.False(t, h.timers.Active(timer.PurposeEffect))
	assert.Len(t, h.engine.hands["P2"], 1)
}

func TestTimeBomb_Expires(t *testing.T) {
	h := started(t, defaultSettings())
	armTimeBomb(t, h)
	total := h.engine.CardCount()

	assert.Equal(t, timeBombWindow, h.timers.FireUntilStopped(timer.PurposeEffect, 50))

	assert.Len(t, h.engine.hands["P2"], 2+timeBombPenalty)
	assert.Equal(t, "P1", h.engine.currentPlayer())
	assert.Nil(t, h.engine.pending)
	assert.Equal(t, total, h.engine.CardCount())
}

func TestTimeBomb_DrawingDetonates(t *testing.T) {
	h := started(t, defaultSettings())
	armTimeBomb(t, h)

	require.NoError(t, h.engine.Handle("P2", ActionDraw, nil))

	assert.Len(t, h.engine.hands["P2"], 2+timeBombPenalty)
	assert.Equal(t, "P1", h.engine.currentPlayer())
	assert.False(t, h.timers.Active(timer.PurposeEffect))
}

func TestTimeBomb_ShieldReflects(t *testing.T) {
	h := started(t, defaultSettings())
	h.engine.shields["P2"] = true
	armTimeBomb(t, h)

	h.timers.FireUntilStopped(timer.PurposeEffect, 50)

	assert.Len(t, h.engine.hands["P1"], 2+timeBombPenalty)
	assert.Len(t, h.engine.hands["P2"], 2)
}

func armLuckyDraw(t *testing.T, h *harness) models.Card {
	t.Helper()
	ld, kept := unique(models.UniqueLuckyDraw), num(models.ColorRed, 1)
	h.setHands([]models.Card{ld, kept}, reds(2))
	require.NoError(t, h.play("P1", ld))
	require.NotNil(t, h.engine.pending)
	require.Len(t, h.engine.pending.Choices, luckyDrawCount)
	return kept
}

func TestLuckyDraw_Keep(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	kept := armLuckyDraw(t, h)
	total := e.CardCount()
	choices := e.pending.Choices

	assert.Len(t, e.hands["P1"], 4)
	assert.False(t, h.timers.Active(timer.PurposeTurn))
	assert.Len(t, e.Snapshot("P1").(View).Choices, luckyDrawCount)
	assert.Empty(t, e.Snapshot("P2").(View).Choices)

	assert.ErrorIs(t, h.play("P1", kept), models.ErrInvalidState)
	assert.ErrorIs(t, e.Handle("P2", ActionLuckyDrawKeep, mustJSON(cardChoice{CardID: choices[1].ID})), models.ErrInvalidTurn)
	assert.ErrorIs(t, e.Handle("P1", ActionLuckyDrawKeep, mustJSON(cardChoice{CardID: kept.ID})), models.ErrNotFound)

	require.NoError(t, e.Handle("P1", ActionLuckyDrawKeep, mustJSON(cardChoice{CardID: choices[1].ID})))

	assert.Equal(t, []string{kept.ID, choices[1].ID}, ids(e.hands["P1"]))
	assert.Len(t, e.hands["P2"], 4)
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Nil(t, e.pending)
	assert.True(t, h.timers.Active(timer.PurposeTurn))
	assert.Equal(t, total, e.CardCount())
}

func TestLuckyDraw_TimeoutKeepsFirst(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	kept := armLuckyDraw(t, h)
	first := e.pending.Choices[0]

	assert.Equal(t, luckyDrawWindow, h.timers.FireUntilStopped(timer.PurposeEffect, 50))

	assert.Equal(t, []string{kept.ID, first.ID}, ids(e.hands["P1"]))
	assert.Equal(t, "P2", e.currentPlayer())
}

func TestPeekPick_Choose(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	pp := unique(models.UniquePeekPick)
	theirs := reds(3)
	h.setHands(append([]models.Card{pp}, reds(1)...), theirs)
	total := e.CardCount()

	require.NoError(t, h.play("P1", pp))
	require.NotNil(t, e.pending)
	assert.Len(t, e.Snapshot("P1").(View).OpponentHand, 3)
	assert.Empty(t, e.Snapshot("P2").(View).OpponentHand)

	choose := func(playerID, cardID string) error {
		return e.Handle(playerID, ActionPeekPickChoose, mustJSON(cardChoice{CardID: cardID}))
	}
	assert.ErrorIs(t, choose("P2", theirs[1].ID), models.ErrInvalidTurn)
	assert.ErrorIs(t, choose("P1", "nope"), models.ErrNotFound)
	require.NoError(t, choose("P1", theirs[1].ID))

	assert.Equal(t, []string{theirs[0].ID, theirs[2].ID}, ids(e.hands["P2"]))
	n := len(e.discard)
	assert.Equal(t, pp.ID, e.discard[n-1].ID)
	assert.Equal(t, theirs[1].ID, e.discard[n-2].ID)
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Equal(t, total, e.CardCount())
	assert.ErrorIs(t, choose("P1", theirs[0].ID), models.ErrInvalidState)
}

func TestPeekPick_ResolvesImmediately(t *testing.T) {
	t.Run("single card", func(t *testing.T) {
		h := started(t, defaultSettings())
		pp := unique(models.UniquePeekPick)
		h.setHands(append([]models.Card{pp}, reds(1)...), reds(1))

		require.NoError(t, h.play("P1", pp))
		assert.Nil(t, h.engine.pending)
		assert.Equal(t, "P2", h.engine.currentPlayer())
	})
	t.Run("shielded", func(t *testing.T) {
		h := started(t, defaultSettings())
		pp := unique(models.UniquePeekPick)
		h.setHands(append([]models.Card{pp}, reds(1)...), reds(3))
		h.engine.shields["P2"] = true

		require.NoError(t, h.play("P1", pp))
		assert.Nil(t, h.engine.pending)
		assert.False(t, h.engine.shields["P2"])
		assert.Len(t, h.engine.hands["P2"], 3)
	})
}

func TestPeekPick_Timeout(t *testing.T) {
	h := started(t, defaultSettings())
	pp := unique(models.UniquePeekPick)
	h.setHands(append([]models.Card{pp}, reds(1)...), reds(3))
	require.NoError(t, h.play("P1", pp))

	assert.Equal(t, peekPickWindow, h.timers.FireUntilStopped(timer.PurposeEffect, 50))

	assert.Nil(t, h.engine.pending)
	assert.Len(t, h.engine.hands["P2"], 3)
	assert.Equal(t, "P2", h.engine.currentPlayer())
}
