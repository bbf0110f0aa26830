package cards

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

// Effect windows, in seconds.
const (
	timeBombWindow  = 10
	luckyDrawWindow = 20
	peekPickWindow  = 30

	timeBombPenalty   = 3
	luckyDrawCount    = 3
	doubleDownPenalty = 4
	duelPenalty       = 2
)

// Effect is a unique-card effect still waiting on a player or a timer.
// For time-bomb PlayerID is the target; otherwise it is the player who
// must choose.
type Effect struct {
	Type          models.UniqueType `json:"type"`
	PlayerID      string            `json:"playerId"`
	SourceID      string            `json:"sourceId"`
	TimeRemaining int               `json:"timeRemaining"`
	Choices       []models.Card     `json:"-"`
}

// awaitsChoice reports whether the effect blocks play until its owner
// answers.
func (f *Effect) awaitsChoice() bool {
	return f.Type == models.UniqueLuckyDraw || f.Type == models.UniquePeekPick
}

type uniquePlan struct {
	pair   []string
	replay models.Card
}

// checkUnique validates the conditions a unique card needs before anything
// is mutated.
func (e *Engine) checkUnique(playerID string, card models.Card, req Play) (uniquePlan, error) {
	var plan uniquePlan
	switch card.UniqueType {
	case models.UniqueRevenge:
		last := e.lastPlay
		if last == nil || last.PlayerID != e.opponent(playerID) || !last.Card.IsAction() {
			return plan, fmt.Errorf("%w: revenge must answer an opponent's action card", models.ErrPreconditionFailed)
		}
		plan.replay = last.Card

	case models.UniqueFinalStand:
		if len(e.hands[playerID]) > 3 {
			return plan, fmt.Errorf("%w: final stand needs 3 or fewer cards in hand", models.ErrPreconditionFailed)
		}

	case models.UniqueDoubleDown:
		if len(req.PairCardIDs) == 0 {
			break
		}
		if len(req.PairCardIDs) != 2 || req.PairCardIDs[0] == req.PairCardIDs[1] {
			return plan, fmt.Errorf("%w: double down takes two cards", models.ErrValidationFailed)
		}
		var values []int
		for _, id := range req.PairCardIDs {
			i, ok := e.findInHand(playerID, id)
			if !ok || id == card.ID {
				return plan, fmt.Errorf("%w: card %s is not in your hand", models.ErrNotFound, id)
			}
			v, isNumber := e.hands[playerID][i].Number()
			if !isNumber {
				return plan, fmt.Errorf("%w: double down pairs number cards", models.ErrValidationFailed)
			}
			values = append(values, v)
		}
		if values[0] != values[1] {
			return plan, fmt.Errorf("%w: double down cards must match", models.ErrValidationFailed)
		}
		plan.pair = req.PairCardIDs
	}
	return plan, nil
}

func (e *Engine) applyUnique(playerID string, card models.Card, req Play, plan uniquePlan) {
	opp := e.opponent(playerID)
	e.Emit(models.EventEffectStarted, playerID, map[string]any{"effect": card.UniqueType})

	switch card.UniqueType {
	case models.UniqueDuel:
		e.duel(playerID, opp)

	case models.UniqueMirror, models.UniqueFinalStand:
		e.inflict(playerID, opp, len(e.hands[playerID]))
		e.advanceTurn()

	case models.UniqueSwapHands:
		if !e.blocked(opp) {
			e.hands[playerID], e.hands[opp] = e.hands[opp], e.hands[playerID]
			e.calledUno[playerID], e.calledUno[opp] = false, false
			e.Emit(models.EventEffectResolved, playerID, map[string]any{"effect": card.UniqueType})
		}
		e.advanceTurn()

	case models.UniqueShield:
		e.shields[playerID] = true
		e.advanceTurn()

	case models.UniqueDoubleDown:
		if len(plan.pair) == 2 {
			for _, id := range plan.pair {
				i, _ := e.findInHand(playerID, id)
				c := e.takeFromHand(playerID, i)
				e.underTop(c)
			}
			e.inflict(playerID, opp, doubleDownPenalty)
		}
		e.advanceTurn()

	case models.UniqueRevenge:
		for i := 0; i < 2; i++ {
			e.applyStandard(plan.replay.Type, plan.replay.Color, req.ChosenColor)
		}
		e.advanceTurn()

	case models.UniqueTimeBomb:
		e.advanceTurn()
		e.startEffect(&Effect{
			Type:          models.UniqueTimeBomb,
			PlayerID:      opp,
			SourceID:      playerID,
			TimeRemaining: timeBombWindow,
		})

	case models.UniqueLuckyDraw:
		drawn := e.drawCards(playerID, luckyDrawCount)
		if len(drawn) <= 1 {
			e.advanceTurn()
			return
		}
		e.Env.Timers.Cancel(timer.PurposeTurn)
		e.startEffect(&Effect{
			Type:          models.UniqueLuckyDraw,
			PlayerID:      playerID,
			SourceID:      playerID,
			TimeRemaining: luckyDrawWindow,
			Choices:       drawn,
		})

	case models.UniquePeekPick:
		if e.blocked(opp) || len(e.hands[opp]) <= 1 {
			e.advanceTurn()
			return
		}
		e.Env.Timers.Cancel(timer.PurposeTurn)
		e.startEffect(&Effect{
			Type:          models.UniquePeekPick,
			PlayerID:      playerID,
			SourceID:      playerID,
			TimeRemaining: peekPickWindow,
		})
	}
}

// blocked consumes target's shield, if any, reporting whether it was up.
func (e *Engine) blocked(target string) bool {
	if !e.shields[target] {
		return false
	}
	e.shields[target] = false
	e.Emit(models.EventEffectResolved, target, map[string]any{"effect": models.UniqueShield, "blocked": true})
	return true
}

// underTop slides c beneath the top discard.
func (e *Engine) underTop(c models.Card) {
	n := len(e.discard)
	e.discard = append(e.discard, models.Card{})
	copy(e.discard[n:], e.discard[n-1:n])
	e.discard[n-1] = c
}

// duel compares the first card of each hand. The higher number takes the
// turn and the other player draws; a tie or a non-number makes both draw.
func (e *Engine) duel(playerID, opp string) {
	a, b := e.hands[playerID], e.hands[opp]
	if len(a) == 0 || len(b) == 0 {
		e.advanceTurn()
		return
	}
	va, okA := a[0].Number()
	vb, okB := b[0].Number()
	if okA && okB && va != vb {
		winner, loser := playerID, opp
		if vb > va {
			winner, loser = opp, playerID
		}
		e.drawCards(loser, duelPenalty)
		e.Emit(models.EventEffectResolved, winner, map[string]any{"effect": models.UniqueDuel, "winner": winner})
		e.giveTurn(winner)
		return
	}
	e.drawCards(playerID, duelPenalty)
	e.drawCards(opp, duelPenalty)
	e.Emit(models.EventEffectResolved, playerID, map[string]any{"effect": models.UniqueDuel, "winner": nil})
	e.advanceTurn()
}

func (e *Engine) startEffect(f *Effect) {
	e.pending = f
	e.Emit(models.EventTimer, f.PlayerID, map[string]any{"effect": f.Type, "timeRemaining": f.TimeRemaining})
	e.Env.Timers.Schedule(timer.PurposeEffect, time.Second, time.Second, e.effectTick)
}

func (e *Engine) clearEffect() {
	e.Env.Timers.Cancel(timer.PurposeEffect)
	e.pending = nil
}

func (e *Engine) effectTick() {
	if !e.Machine.Is(models.PhasePlaying) || e.pending == nil {
		return
	}
	f := e.pending
	f.TimeRemaining--
	e.Emit(models.EventTimer, f.PlayerID, map[string]any{"effect": f.Type, "timeRemaining": f.TimeRemaining})
	if f.TimeRemaining > 0 {
		return
	}

	switch f.Type {
	case models.UniqueTimeBomb:
		target := f.PlayerID
		e.detonate(target)
		if e.currentPlayer() == target {
			e.advanceTurn()
		}
	case models.UniqueLuckyDraw:
		e.keepLucky(f.PlayerID, f.Choices[0].ID)
	case models.UniquePeekPick:
		e.clearEffect()
		e.Emit(models.EventEffectResolved, f.PlayerID, map[string]any{"effect": f.Type, "expired": true})
		e.advanceTurn()
	}
}

// defuse disarms a time bomb aimed at playerID.
func (e *Engine) defuse(playerID string) {
	if e.pending == nil || e.pending.Type != models.UniqueTimeBomb || e.pending.PlayerID != playerID {
		return
	}
	e.clearEffect()
	e.Emit(models.EventEffectResolved, playerID, map[string]any{"effect": models.UniqueTimeBomb, "defused": true})
}

// detonate fires a time bomb aimed at playerID and reports whether there
// was one.
func (e *Engine) detonate(playerID string) bool {
	f := e.pending
	if f == nil || f.Type != models.UniqueTimeBomb || f.PlayerID != playerID {
		return false
	}
	e.clearEffect()
	e.Emit(models.EventEffectResolved, playerID, map[string]any{"effect": models.UniqueTimeBomb, "exploded": true})
	e.inflict(f.SourceID, playerID, timeBombPenalty)
	return true
}

type cardChoice struct {
	CardID string `json:"cardId"`
}

func (e *Engine) requireChoice(playerID string, t models.UniqueType, payload json.RawMessage) (string, error) {
	var req cardChoice
	if err := game.DecodePayload(payload, &req); err != nil {
		return "", err
	}
	if err := e.Machine.Require(models.PhasePlaying); err != nil {
		return "", err
	}
	if e.pending == nil || e.pending.Type != t {
		return "", fmt.Errorf("%w: no %s to resolve", models.ErrInvalidState, t)
	}
	if e.pending.PlayerID != playerID {
		return "", fmt.Errorf("%w: not your choice", models.ErrInvalidTurn)
	}
	return req.CardID, nil
}

func (e *Engine) luckyDrawKeep(playerID string, payload json.RawMessage) error {
	cardID, err := e.requireChoice(playerID, models.UniqueLuckyDraw, payload)
	if err != nil {
		return err
	}
	found := false
	for _, c := range e.pending.Choices {
		found = found || c.ID == cardID
	}
	if !found {
		return fmt.Errorf("%w: card %s was not drawn", models.ErrNotFound, cardID)
	}
	e.keepLucky(playerID, cardID)
	return nil
}

// keepLucky leaves the kept card in the player's hand and hands the other
// drawn cards to the opponent.
func (e *Engine) keepLucky(playerID, keepID string) {
	choices := e.pending.Choices
	e.clearEffect()

	opp := e.opponent(playerID)
	given := 0
	for _, c := range choices {
		if c.ID == keepID {
			continue
		}
		if i, ok := e.findInHand(playerID, c.ID); ok {
			e.hands[opp] = append(e.hands[opp], e.takeFromHand(playerID, i))
			given++
		}
	}
	if given > 0 {
		e.calledUno[opp] = false
	}
	e.Emit(models.EventEffectResolved, playerID, map[string]any{
		"effect": models.UniqueLuckyDraw,
		"given":  given,
	})
	e.advanceTurn()
	e.checkRoundEnd(playerID)
}

func (e *Engine) peekPickChoose(playerID string, payload json.RawMessage) error {
	cardID, err := e.requireChoice(playerID, models.UniquePeekPick, payload)
	if err != nil {
		return err
	}
	opp := e.opponent(playerID)
	i, ok := e.findInHand(opp, cardID)
	if !ok {
		return fmt.Errorf("%w: card %s is not in your opponent's hand", models.ErrNotFound, cardID)
	}

	e.clearEffect()
	e.underTop(e.takeFromHand(opp, i))
	e.Emit(models.EventEffectResolved, playerID, map[string]any{
		"effect":    models.UniquePeekPick,
		"discarded": cardID,
	})
	e.advanceTurn()
	e.checkRoundEnd(playerID)
	return nil
}
