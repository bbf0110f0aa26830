package cards

import (
	"encoding/json"
	"fmt"
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
}

func newHarness(t *testing.T, settings models.CardSettings) *harness {
	t.Helper()
	h := &harness{timers: timer.NewManual(), rec: &game.Recorder{}}
	h.engine = New("CARD", game.Env{
		Clock:          mocks.NewMockClock(time.Unix(1700000000, 0)),
		Random:         mocks.NewMockRandom(),
		Timers:         h.timers,
		Out:            h.rec,
		Catalog:        content.Default(),
		TieBreak:       models.TieBreakRosterOrder,
		NextRoundDelay: 3 * time.Second,
	}, settings)
	return h
}

func defaultSettings() models.CardSettings {
	return models.NewDefaultSettings().Cards
}

// started joins P1 and P2, readies both and deals the first round. With the
// mock random the deck is unshuffled: P1 holds red 0-6, P2 red 1-7 and the
// start card is red 7.
func started(t *testing.T, settings models.CardSettings) *harness {
	t.Helper()
	h := newHarness(t, settings)
	for _, id := range []string{"P1", "P2"} {
		_, err := h.engine.Join(id, "name-"+id)
		require.NoError(t, err)
		require.NoError(t, h.engine.SetReady(id))
	}
	require.NoError(t, h.engine.Start("P1"))
	return h
}

var seq int

func num(c models.Color, v int) models.Card {
	seq++
	return models.Card{ID: fmt.Sprintf("t-%d", seq), Type: models.CardNumber, Color: c, Value: &v}
}

func action(t models.CardType, c models.Color) models.Card {
	seq++
	return models.Card{ID: fmt.Sprintf("t-%d", seq), Type: t, Color: c}
}

func unique(u models.UniqueType) models.Card {
	seq++
	return models.Card{ID: fmt.Sprintf("t-%d", seq), Type: models.CardUnique, UniqueType: u}
}

func (h *harness) setHands(p1, p2 []models.Card) {
	h.engine.hands["P1"] = p1
	h.engine.hands["P2"] = p2
}

func (h *harness) play(playerID string, c models.Card) error {
	return h.engine.Handle(playerID, ActionPlay, mustJSON(Play{CardID: c.ID}))
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestDeckSize(t *testing.T) {
	assert.Len(t, NewDeck(false), 108)
	assert.Len(t, NewDeck(true), 128)

	counts := map[models.CardType]int{}
	uniques := map[models.UniqueType]int{}
	for _, c := range NewDeck(true) {
		counts[c.Type]++
		if c.Type == models.CardUnique {
			uniques[c.UniqueType]++
		}
	}
	assert.Equal(t, 76, counts[models.CardNumber])
	assert.Equal(t, 8, counts[models.CardSkip])
	assert.Equal(t, 4, counts[models.CardWild])
	assert.Equal(t, 4, counts[models.CardWildDrawFour])
	assert.Len(t, uniques, 10)
	for u, n := range uniques {
		assert.Equal(t, 2, n, u)
	}
}

func TestDeal_SevenEachAndNumberStart(t *testing.T) {
	deck := NewDeck(true)
	hands, draw, start := Deal(mocks.NewMockRandom(), deck, 2)

	require.Len(t, hands, 2)
	assert.Len(t, hands[0], HandSize)
	assert.Len(t, hands[1], HandSize)
	assert.Equal(t, models.CardNumber, start.Type)
	assert.Equal(t, 128, len(hands[0])+len(hands[1])+len(draw)+1)
}

func TestDeal_StartSkipsActionCards(t *testing.T) {
	var deck []models.Card
	for i := 0; i < 2*HandSize; i++ {
		deck = append(deck, num(models.ColorRed, i%10))
	}
	skip := action(models.CardSkip, models.ColorBlue)
	five := num(models.ColorGreen, 5)
	deck = append(deck, skip, five)

	_, draw, start := Deal(mocks.NewMockRandom(), deck, 2)
	assert.Equal(t, five.ID, start.ID)
	require.Len(t, draw, 1)
	assert.Equal(t, skip.ID, draw[0].ID)
}

func TestCanPlay(t *testing.T) {
	red7 := num(models.ColorRed, 7)
	cases := []struct {
		name  string
		card  models.Card
		top   models.Card
		color models.Color
		want  bool
	}{
		{"wild always", action(models.CardWild, ""), red7, models.ColorRed, true},
		{"unique always", unique(models.UniqueFinalStand), red7, models.ColorRed, true},
		{"same color", num(models.ColorRed, 3), red7, models.ColorRed, true},
		{"same number", num(models.ColorBlue, 7), red7, models.ColorRed, true},
		{"active color after wild", num(models.ColorBlue, 3), action(models.CardWild, ""), models.ColorBlue, true},
		{"no match", num(models.ColorBlue, 3), red7, models.ColorRed, false},
		{"same symbol", action(models.CardSkip, models.ColorBlue), action(models.CardSkip, models.ColorRed), models.ColorRed, true},
		{"symbol on number", action(models.CardSkip, models.ColorBlue), red7, models.ColorRed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanPlay(tc.card, tc.top, tc.color))
		})
	}
}

func TestStart_DealsFirstRound(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine

	assert.Equal(t, models.PhasePlaying, e.Phase())
	assert.Equal(t, 1, e.roundNumber)
	assert.Len(t, e.hands["P1"], HandSize)
	assert.Len(t, e.hands["P2"], HandSize)
	assert.Equal(t, models.CardNumber, e.top().Type)
	assert.Equal(t, models.ColorRed, e.color)
	assert.Equal(t, "P1", e.currentPlayer())
	assert.Equal(t, DeckSize(true), e.CardCount())
	assert.True(t, h.timers.Active(timer.PurposeTurn))
	assert.Contains(t, h.rec.Types(), models.EventRoundStarted)
}

func TestStart_Preconditions(t *testing.T) {
	h := newHarness(t, defaultSettings())
	_, err := h.engine.Join("P1", "Alice")
	require.NoError(t, err)
	require.NoError(t, h.engine.SetReady("P1"))
	assert.ErrorIs(t, h.engine.Start("P1"), models.ErrPreconditionFailed)

	_, err = h.engine.Join("P2", "Bob")
	require.NoError(t, err)
	assert.ErrorIs(t, h.engine.Start("P1"), models.ErrPreconditionFailed, "P2 not ready")

	require.NoError(t, h.engine.SetReady("P2"))
	assert.ErrorIs(t, h.engine.Start("P2"), models.ErrNotAuthorized)
	assert.Equal(t, models.PhaseLobby, h.engine.Phase())

	_, err = h.engine.Join("P3", "Cara")
	assert.ErrorIs(t, err, models.ErrRoomFull)
}

func TestPlay_Rejections(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine

	assert.ErrorIs(t, h.play("P2", e.hands["P2"][0]), models.ErrInvalidTurn)
	assert.ErrorIs(t, h.play("P1", e.hands["P2"][0]), models.ErrNotFound)

	blue := num(models.ColorBlue, 3)
	e.hands["P1"][0] = blue
	assert.ErrorIs(t, h.play("P1", blue), models.ErrPreconditionFailed)
	assert.Len(t, e.hands["P1"], HandSize)
	assert.Equal(t, "P1", e.currentPlayer())

	assert.ErrorIs(t, e.Handle("P1", "fly", nil), models.ErrValidationFailed)
	assert.ErrorIs(t, e.Handle("P9", ActionDraw, nil), models.ErrNotFound)
}

func TestPlay_NumberPassesTurn(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	card := e.hands["P1"][0]

	require.NoError(t, h.play("P1", card))

	assert.Equal(t, card.ID, e.top().ID)
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Len(t, e.hands["P1"], HandSize-1)
	assert.Equal(t, DeckSize(true), e.CardCount())
	evt, ok := h.rec.Last(models.EventCardPlayed)
	require.True(t, ok)
	assert.Equal(t, "P1", evt.PlayerID)
}

func TestPlay_WildNeedsColor(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	wild := action(models.CardWild, "")
	e.hands["P1"] = append(e.hands["P1"], wild)

	assert.ErrorIs(t, h.play("P1", wild), models.ErrValidationFailed)
	require.NoError(t, e.Handle("P1", ActionPlay, mustJSON(Play{CardID: wild.ID, ChosenColor: models.ColorGreen})))

	assert.Equal(t, models.ColorGreen, e.color)
	assert.Equal(t, "P2", e.currentPlayer())
}

func TestPlay_SkipAndReverseKeepTurn(t *testing.T) {
	for _, ct := range []models.CardType{models.CardSkip, models.CardReverse} {
		t.Run(string(ct), func(t *testing.T) {
			h := started(t, defaultSettings())
			c := action(ct, models.ColorRed)
			h.engine.hands["P1"] = append(h.engine.hands["P1"], c)

			require.NoError(t, h.play("P1", c))
			assert.Equal(t, "P1", h.engine.currentPlayer())
		})
	}
}

func TestPlay_DrawTwoAndDrawFour(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	two := action(models.CardDrawTwo, models.ColorRed)
	e.hands["P1"] = append(e.hands["P1"], two)

	require.NoError(t, h.play("P1", two))
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Len(t, e.hands["P2"], HandSize+2)

	four := action(models.CardWildDrawFour, "")
	e.hands["P2"] = append(e.hands["P2"], four)
	require.NoError(t, e.Handle("P2", ActionPlay, mustJSON(Play{CardID: four.ID, ChosenColor: models.ColorYellow})))
	assert.Equal(t, "P1", e.currentPlayer())
	assert.Len(t, e.hands["P1"], HandSize+4)
	assert.Equal(t, models.ColorYellow, e.color)
}

func TestDraw_DrawsOneAndPasses(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine

	require.NoError(t, e.Handle("P1", ActionDraw, nil))

	hand := e.hands["P1"]
	require.Len(t, hand, HandSize+1)
	v, _ := hand[HandSize].Number()
	assert.Equal(t, 8, v)
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Equal(t, DeckSize(true), e.CardCount())
}

func TestTurnTimer_ExpiryDrawsAndPasses(t *testing.T) {
	settings := defaultSettings()
	settings.TimePerTurn = 3
	h := started(t, settings)
	e := h.engine

	for i := 0; i < 3; i++ {
		require.True(t, h.timers.Fire(timer.PurposeTurn))
	}

	assert.Len(t, e.hands["P1"], HandSize+1)
	assert.Equal(t, "P2", e.currentPlayer())
	assert.Equal(t, 3, e.timeRemaining)
	assert.True(t, h.timers.Active(timer.PurposeTurn))
}

func TestTurnTimer_Unlimited(t *testing.T) {
	settings := defaultSettings()
	settings.TimePerTurn = 0
	h := started(t, settings)
	assert.False(t, h.timers.Active(timer.PurposeTurn))
}

func TestUno_CallAndCatch(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	a, b := num(models.ColorRed, 5), num(models.ColorRed, 6)
	h.setHands([]models.Card{a, b}, []models.Card{num(models.ColorBlue, 1), num(models.ColorBlue, 2)})

	assert.ErrorIs(t, e.Handle("P1", ActionCallUno, nil), models.ErrPreconditionFailed)
	require.NoError(t, h.play("P1", a))
	require.NoError(t, e.Handle("P2", ActionCatchUno, nil))

	assert.Len(t, e.hands["P1"], 3)
	evt, ok := h.rec.Last(models.EventUnoPenalty)
	require.True(t, ok)
	assert.Equal(t, "P1", evt.PlayerID)
}

func TestUno_CalledCannotBeCaught(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	a, b := num(models.ColorRed, 5), num(models.ColorRed, 6)
	h.setHands([]models.Card{a, b}, []models.Card{num(models.ColorBlue, 1), num(models.ColorBlue, 2)})

	require.NoError(t, h.play("P1", a))
	require.NoError(t, e.Handle("P1", ActionCallUno, nil))
	assert.ErrorIs(t, e.Handle("P1", ActionCallUno, nil), models.ErrPreconditionFailed)
	assert.ErrorIs(t, e.Handle("P2", ActionCatchUno, nil), models.ErrPreconditionFailed)
	assert.Len(t, e.hands["P1"], 1)
}

// Natural play with the unshuffled deck: both players shed reds in hand
// order until P1 empties first, leaving P2 holding red 7.
func TestRound_CardCountConservedAndScored(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine
	total := DeckSize(true)

	for step := 0; step < 40 && e.Machine.Is(models.PhasePlaying); step++ {
		cur := e.currentPlayer()
		played := false
		for _, c := range e.hands[cur] {
			if CanPlay(c, e.top(), e.color) {
				require.NoError(t, h.play(cur, c))
				played = true
				break
			}
		}
		if !played {
			require.NoError(t, e.Handle(cur, ActionDraw, nil))
		}
		require.Equal(t, total, e.CardCount(), "step %d", step)
	}

	require.Equal(t, models.PhaseRoundEnded, e.Phase())
	assert.Equal(t, "P1", e.roundWinner)
	p1, _ := e.Players.Find("P1")
	assert.Equal(t, 7, p1.Score)
	require.Len(t, e.history, 1)
	assert.Equal(t, 1, e.history[0].CardsRemaining["P2"])
	assert.False(t, h.timers.Active(timer.PurposeTurn))

	require.True(t, h.timers.Fire(timer.PurposeNextRound))
	assert.Equal(t, models.PhasePlaying, e.Phase())
	assert.Equal(t, 2, e.roundNumber)
	assert.Equal(t, "P2", e.currentPlayer(), "first player alternates")
	assert.Equal(t, total, e.CardCount())
}

func TestRound_TargetScoreEndsGame(t *testing.T) {
	settings := defaultSettings()
	settings.TargetScore = 20
	h := started(t, settings)
	e := h.engine
	last := num(models.ColorRed, 5)
	h.setHands([]models.Card{last}, []models.Card{action(models.CardSkip, models.ColorBlue), num(models.ColorBlue, 3)})

	require.NoError(t, h.play("P1", last))

	assert.Equal(t, models.PhaseGameOver, e.Phase())
	res, ok := e.Result()
	require.True(t, ok)
	assert.Equal(t, []string{"P1"}, res.Winners)
	assert.Equal(t, models.ReasonCompleted, res.Reason)
	assert.Equal(t, 23, res.Standings[0].Score)
	assert.Empty(t, h.timers.Pending())
}

func TestLeave_MidGameEndsGame(t *testing.T) {
	h := started(t, defaultSettings())

	require.NoError(t, h.engine.Leave("P2"))

	assert.Equal(t, models.PhaseGameOver, h.engine.Phase())
	res, ok := h.engine.Result()
	require.True(t, ok)
	assert.Equal(t, models.ReasonPlayerLeft, res.Reason)
	assert.Empty(t, h.timers.Pending())
}

func TestSnapshot_HidesOpponentHand(t *testing.T) {
	h := started(t, defaultSettings())
	e := h.engine

	v := e.Snapshot("P2").(View)
	assert.Equal(t, e.hands["P2"], v.Hand)
	assert.Equal(t, map[string]int{"P1": HandSize, "P2": HandSize}, v.HandCounts)
	assert.Nil(t, v.OpponentHand)
	assert.Equal(t, "P1", v.CurrentPlayerID)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	for _, c := range e.hands["P1"] {
		assert.NotContains(t, string(raw), c.ID)
	}
}

func TestUpdateSettings_HostOnlyOutsideGame(t *testing.T) {
	h := newHarness(t, defaultSettings())
	_, err := h.engine.Join("P1", "Alice")
	require.NoError(t, err)
	_, err = h.engine.Join("P2", "Bob")
	require.NoError(t, err)

	assert.ErrorIs(t, h.engine.UpdateSettings("P2", json.RawMessage(`{"targetScore":100}`)), models.ErrNotAuthorized)
	assert.ErrorIs(t, h.engine.UpdateSettings("P1", json.RawMessage(`{"targetScore":0}`)), models.ErrValidationFailed)
	require.NoError(t, h.engine.UpdateSettings("P1", json.RawMessage(`{"targetScore":100}`)))
	assert.Equal(t, 100, h.engine.Settings().TargetScore)
}
