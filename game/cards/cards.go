// Package cards implements the two-player shedding card game: a standard
// 108-card deck plus optional unique cards with special effects.
package cards

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

// Capacity is the number of players a card room holds.
const Capacity = 2

const (
	ActionPlay           = "play"
	ActionDraw           = "draw-card"
	ActionCallUno        = "call-uno"
	ActionCatchUno       = "catch-uno"
	ActionLuckyDrawKeep  = "lucky-draw-keep"
	ActionPeekPickChoose = "peek-pick-choose"
)

// Play is the payload of a play command. ChosenColor is required for wild
// cards; PairCardIDs is the optional matching pair thrown with double-down.
type Play struct {
	CardID      string       `json:"cardId"`
	ChosenColor models.Color `json:"chosenColor,omitempty"`
	PairCardIDs []string     `json:"pairCardIds,omitempty"`
}

// LastPlay is the most recent card played and who played it.
type LastPlay struct {
	PlayerID string      `json:"playerId"`
	Card     models.Card `json:"card"`
}

// RoundRecord is kept for every finished round.
type RoundRecord struct {
	Round          int            `json:"roundNumber"`
	Winner         string         `json:"winner"`
	Points         int            `json:"points"`
	Scores         map[string]int `json:"scores"`
	CardsRemaining map[string]int `json:"cardsRemaining"`
}

type Engine struct {
	game.Base

	settings models.CardSettings

	order     []string // fixed at start
	hands     map[string][]models.Card
	drawPile  []models.Card // top is the last element
	discard   []models.Card // top is the last element
	color     models.Color
	current   int
	direction int
	skipNext  bool
	drawCount int

	shields   map[string]bool
	calledUno map[string]bool
	lastPlay  *LastPlay
	pending   *Effect

	timeRemaining int
	roundNumber   int
	roundWinner   string
	history       []RoundRecord
	result        *models.GameResult
}

var _ game.Engine = (*Engine)(nil)

func New(roomID string, env game.Env, settings models.CardSettings) *Engine {
	e := &Engine{
		Base:     game.NewBase(roomID, env),
		settings: settings,
	}

	m := e.Machine
	m.AddTransition(models.PhaseLobby, models.PhasePlaying, nil)
	m.AddTransition(models.PhaseGameOver, models.PhasePlaying, nil)
	m.AddTransition(models.PhasePlaying, models.PhaseRoundEnded, nil)
	m.AddTransition(models.PhasePlaying, models.PhaseGameOver, nil)
	m.AddTransition(models.PhaseRoundEnded, models.PhasePlaying, nil)
	m.AddTransition(models.PhaseRoundEnded, models.PhaseGameOver, nil)

	m.OnExit(models.PhasePlaying, func() {
		e.Env.Timers.Cancel(timer.PurposeTurn)
		e.Env.Timers.Cancel(timer.PurposeEffect)
		e.pending = nil
	})
	m.OnExit(models.PhaseRoundEnded, func() { e.Env.Timers.Cancel(timer.PurposeNextRound) })
	return e
}

func (e *Engine) Variant() models.Variant {
	return models.VariantCards
}

func (e *Engine) Settings() models.CardSettings {
	return e.settings
}

func (e *Engine) inGame() bool {
	return e.Machine.Is(models.PhasePlaying, models.PhaseRoundEnded)
}

func (e *Engine) Join(playerID, name string) (*models.Player, error) {
	if p, _ := e.Players.Find(playerID); p != nil {
		return p, nil
	}
	if e.inGame() {
		return nil, fmt.Errorf("%w: game in progress", models.ErrInvalidState)
	}
	return e.JoinPlayer(playerID, name, Capacity)
}

// Leave removes the player. Leaving mid-game ends the game.
func (e *Engine) Leave(playerID string) error {
	if _, err := e.RemovePlayer(playerID); err != nil {
		return err
	}
	if e.inGame() {
		e.finish(models.ReasonPlayerLeft)
	}
	return nil
}

func (e *Engine) SetReady(playerID string) error {
	if _, err := e.Member(playerID); err != nil {
		return err
	}
	if e.inGame() {
		return fmt.Errorf("%w: game in progress", models.ErrInvalidState)
	}
	return e.ToggleReady(playerID)
}

func (e *Engine) UpdateSettings(playerID string, raw json.RawMessage) error {
	if err := e.RequireHost(playerID); err != nil {
		return err
	}
	if err := e.Machine.Require(models.PhaseLobby, models.PhaseGameOver); err != nil {
		return err
	}
	next, err := game.DecodeSettings(raw, e.settings)
	if err != nil {
		return err
	}
	e.settings = next
	e.Emit(models.EventSettingsUpdated, playerID, next)
	return nil
}

func (e *Engine) Start(playerID string) error {
	if err := e.RequireHost(playerID); err != nil {
		return err
	}
	if err := e.Machine.Require(models.PhaseLobby, models.PhaseGameOver); err != nil {
		return err
	}
	if e.Players.Len() != Capacity {
		return fmt.Errorf("%w: cards needs exactly %d players", models.ErrPreconditionFailed, Capacity)
	}
	if !e.Players.AllReady() {
		return fmt.Errorf("%w: not every player is ready", models.ErrPreconditionFailed)
	}

	e.Players.ResetScores()
	e.order = []string{e.Players.Players[0].ID, e.Players.Players[1].ID}
	e.roundNumber = 0
	e.history = nil
	e.result = nil
	e.StartedAt = e.Now()

	e.Emit(models.EventGameStarted, playerID, map[string]any{"targetScore": e.settings.TargetScore})
	e.dealRound()
	return nil
}

// dealRound deals a fresh deck. The first player alternates by round.
func (e *Engine) dealRound() {
	e.roundNumber++
	hands, draw, start := Deal(e.Env.Random, NewDeck(e.settings.IncludeUniqueCards), len(e.order))

	e.hands = make(map[string][]models.Card, len(e.order))
	for i, id := range e.order {
		e.hands[id] = hands[i]
	}
	e.drawPile = draw
	e.discard = []models.Card{start}
	e.color = start.Color
	e.current = (e.roundNumber - 1) % len(e.order)
	e.direction = 1
	e.skipNext = false
	e.drawCount = 0
	e.shields = make(map[string]bool)
	e.calledUno = make(map[string]bool)
	e.lastPlay = nil
	e.pending = nil
	e.roundWinner = ""
	e.Transition(models.PhasePlaying)

	e.Emit(models.EventRoundStarted, e.currentPlayer(), map[string]any{
		"round":     e.roundNumber,
		"startCard": start,
	})
	e.resetTurnTimer()
}

func (e *Engine) currentPlayer() string {
	if len(e.order) == 0 {
		return ""
	}
	return e.order[e.current]
}

func (e *Engine) opponent(playerID string) string {
	for _, id := range e.order {
		if id != playerID {
			return id
		}
	}
	return ""
}

func (e *Engine) top() models.Card {
	return e.discard[len(e.discard)-1]
}

func (e *Engine) findInHand(playerID, cardID string) (int, bool) {
	for i, c := range e.hands[playerID] {
		if c.ID == cardID {
			return i, true
		}
	}
	return -1, false
}

func (e *Engine) takeFromHand(playerID string, i int) models.Card {
	hand := e.hands[playerID]
	c := hand[i]
	e.hands[playerID] = append(hand[:i:i], hand[i+1:]...)
	return c
}

// drawCards moves up to n cards from the draw pile into the player's hand,
// reshuffling the discard pile when the draw pile runs out.
func (e *Engine) drawCards(playerID string, n int) []models.Card {
	drawn := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		if len(e.drawPile) == 0 {
			e.reshuffle()
		}
		if len(e.drawPile) == 0 {
			break
		}
		c := e.drawPile[len(e.drawPile)-1]
		e.drawPile = e.drawPile[:len(e.drawPile)-1]
		e.hands[playerID] = append(e.hands[playerID], c)
		drawn = append(drawn, c)
	}
	if len(drawn) > 0 {
		e.calledUno[playerID] = false
		e.Emit(models.EventCardsDrawn, playerID, map[string]any{"count": len(drawn)})
	}
	return drawn
}

// reshuffle turns everything under the top discard into a new draw pile.
func (e *Engine) reshuffle() {
	if len(e.discard) <= 1 {
		return
	}
	top := e.top()
	pile := append([]models.Card(nil), e.discard[:len(e.discard)-1]...)
	e.Env.Random.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
	e.drawPile = append(e.drawPile, pile...)
	e.discard = []models.Card{top}
}

// inflict makes target draw n cards. A shielded target reflects them back
// onto the attacker.
func (e *Engine) inflict(attacker, target string, n int) {
	if n <= 0 {
		return
	}
	if e.shields[target] {
		e.shields[target] = false
		e.Emit(models.EventEffectResolved, target, map[string]any{
			"effect":    models.UniqueShield,
			"reflected": n,
		})
		e.drawCards(attacker, n)
		return
	}
	e.drawCards(target, n)
}

// advanceTurn passes the turn unless a skip is pending, then makes the new
// current player take any queued draws.
func (e *Engine) advanceTurn() {
	if e.skipNext {
		e.skipNext = false
	} else {
		n := len(e.order)
		e.current = ((e.current+e.direction)%n + n) % n
		if e.drawCount > 0 {
			count := e.drawCount
			e.drawCount = 0
			e.inflict(e.opponent(e.currentPlayer()), e.currentPlayer(), count)
		}
	}
	e.resetTurnTimer()
}

// giveTurn hands the turn to playerID directly.
func (e *Engine) giveTurn(playerID string) {
	for i, id := range e.order {
		if id == playerID {
			e.current = i
		}
	}
	e.skipNext = false
	e.resetTurnTimer()
}

func (e *Engine) resetTurnTimer() {
	e.timeRemaining = e.settings.TimePerTurn
	if e.settings.TimePerTurn > 0 {
		e.Env.Timers.Schedule(timer.PurposeTurn, time.Second, time.Second, e.turnTick)
	}
}

// turnTick counts the turn down. On expiry the current player draws and
// passes.
func (e *Engine) turnTick() {
	if !e.Machine.Is(models.PhasePlaying) {
		return
	}
	e.timeRemaining--
	e.Emit(models.EventTimer, e.currentPlayer(), map[string]any{"timeRemaining": e.timeRemaining})
	if e.timeRemaining > 0 {
		return
	}
	e.Env.Timers.Cancel(timer.PurposeTurn)
	if !e.detonate(e.currentPlayer()) {
		e.drawCards(e.currentPlayer(), 1)
	}
	e.advanceTurn()
}

func (e *Engine) Handle(playerID, action string, payload json.RawMessage) error {
	if _, err := e.Member(playerID); err != nil {
		return err
	}
	switch action {
	case ActionPlay:
		var req Play
		if err := game.DecodePayload(payload, &req); err != nil {
			return err
		}
		return e.play(playerID, req)
	case ActionDraw:
		return e.draw(playerID)
	case ActionCallUno:
		return e.callUno(playerID)
	case ActionCatchUno:
		return e.catchUno(playerID)
	case ActionLuckyDrawKeep:
		return e.luckyDrawKeep(playerID, payload)
	case ActionPeekPickChoose:
		return e.peekPickChoose(playerID, payload)
	}
	return game.UnknownAction(action)
}

func (e *Engine) requireTurn(playerID string) error {
	if err := e.Machine.Require(models.PhasePlaying); err != nil {
		return err
	}
	if e.currentPlayer() != playerID {
		return fmt.Errorf("%w: not your turn", models.ErrInvalidTurn)
	}
	if e.pending != nil && e.pending.awaitsChoice() {
		return fmt.Errorf("%w: resolve %s first", models.ErrInvalidState, e.pending.Type)
	}
	return nil
}

func (e *Engine) play(playerID string, req Play) error {
	if err := e.requireTurn(playerID); err != nil {
		return err
	}
	i, ok := e.findInHand(playerID, req.CardID)
	if !ok {
		return fmt.Errorf("%w: card %s is not in your hand", models.ErrNotFound, req.CardID)
	}
	card := e.hands[playerID][i]
	if !CanPlay(card, e.top(), e.color) {
		return fmt.Errorf("%w: card does not match %s %s", models.ErrPreconditionFailed, e.color, e.top().Type)
	}
	if card.Type == models.CardWild || card.Type == models.CardWildDrawFour {
		if !req.ChosenColor.Valid() {
			return fmt.Errorf("%w: choose a color", models.ErrValidationFailed)
		}
	}
	var plan uniquePlan
	if card.Type == models.CardUnique {
		var err error
		if plan, err = e.checkUnique(playerID, card, req); err != nil {
			return err
		}
	}

	e.defuse(playerID)
	e.takeFromHand(playerID, i)
	e.discard = append(e.discard, card)
	e.lastPlay = &LastPlay{PlayerID: playerID, Card: card}
	if len(e.hands[playerID]) != 1 {
		e.calledUno[playerID] = false
	}
	e.Emit(models.EventCardPlayed, playerID, map[string]any{
		"card":        card,
		"chosenColor": req.ChosenColor,
	})

	if card.Type == models.CardUnique {
		e.applyUnique(playerID, card, req, plan)
	} else {
		e.applyStandard(card.Type, card.Color, req.ChosenColor)
		e.advanceTurn()
	}

	e.checkRoundEnd(playerID)
	return nil
}

// applyStandard applies a standard card's effect without moving the turn.
func (e *Engine) applyStandard(t models.CardType, color, chosen models.Color) {
	switch t {
	case models.CardNumber:
		e.color = color
	case models.CardSkip:
		e.color = color
		e.skipNext = true
	case models.CardReverse:
		e.color = color
		e.direction = -e.direction
		e.skipNext = true
	case models.CardDrawTwo:
		e.color = color
		e.drawCount += 2
	case models.CardWild:
		if chosen.Valid() {
			e.color = chosen
		}
	case models.CardWildDrawFour:
		if chosen.Valid() {
			e.color = chosen
		}
		e.drawCount += 4
	}
}

// checkRoundEnd ends the round when either hand is empty, the player who
// just acted first.
func (e *Engine) checkRoundEnd(playerID string) {
	if !e.Machine.Is(models.PhasePlaying) {
		return
	}
	for _, id := range []string{playerID, e.opponent(playerID)} {
		if len(e.hands[id]) == 0 {
			e.endRound(id)
			return
		}
	}
}

func (e *Engine) draw(playerID string) error {
	if err := e.requireTurn(playerID); err != nil {
		return err
	}
	e.Env.Timers.Cancel(timer.PurposeTurn)
	if !e.detonate(playerID) {
		e.drawCards(playerID, 1)
	}
	e.advanceTurn()
	return nil
}

func (e *Engine) callUno(playerID string) error {
	if err := e.Machine.Require(models.PhasePlaying); err != nil {
		return err
	}
	if len(e.hands[playerID]) != 1 {
		return fmt.Errorf("%w: uno needs exactly one card in hand", models.ErrPreconditionFailed)
	}
	if e.calledUno[playerID] {
		return fmt.Errorf("%w: uno already called", models.ErrPreconditionFailed)
	}
	e.calledUno[playerID] = true
	e.Emit(models.EventUnoCalled, playerID, nil)
	return nil
}

// catchUno penalises an opponent who is down to one card without calling.
func (e *Engine) catchUno(playerID string) error {
	if err := e.Machine.Require(models.PhasePlaying); err != nil {
		return err
	}
	target := e.opponent(playerID)
	if len(e.hands[target]) != 1 || e.calledUno[target] {
		return fmt.Errorf("%w: nothing to catch", models.ErrPreconditionFailed)
	}
	e.drawCards(target, 2)
	e.Emit(models.EventUnoPenalty, target, map[string]any{"caughtBy": playerID})
	return nil
}

// endRound scores the opponent's remaining cards for the winner.
func (e *Engine) endRound(winnerID string) {
	points := 0
	remaining := make(map[string]int, len(e.order))
	for _, id := range e.order {
		remaining[id] = len(e.hands[id])
		if id == winnerID {
			continue
		}
		for _, c := range e.hands[id] {
			points += c.Points()
		}
	}
	winner, _ := e.Players.Find(winnerID)
	if winner != nil {
		winner.Score += points
	}
	scores := make(map[string]int, len(e.order))
	for _, p := range e.Players.Players {
		scores[p.ID] = p.Score
	}
	e.roundWinner = winnerID
	e.history = append(e.history, RoundRecord{
		Round:          e.roundNumber,
		Winner:         winnerID,
		Points:         points,
		Scores:         scores,
		CardsRemaining: remaining,
	})

	e.Transition(models.PhaseRoundEnded)
	e.Emit(models.EventRoundEnded, winnerID, map[string]any{
		"round":  e.roundNumber,
		"points": points,
		"scores": e.Standings(),
	})

	if winner != nil && winner.Score >= e.settings.TargetScore {
		e.finish(models.ReasonCompleted)
		return
	}
	e.Env.Timers.Schedule(timer.PurposeNextRound, e.Env.NextRoundDelay, 0, e.nextRound)
}

func (e *Engine) nextRound() {
	if !e.Machine.Is(models.PhaseRoundEnded) {
		return
	}
	e.dealRound()
}

func (e *Engine) finish(reason string) {
	e.Transition(models.PhaseGameOver)
	r := e.Base.Finish(models.VariantCards, e.Standings(), reason)
	e.result = &r
	e.Emit(models.EventGameEnded, "", map[string]any{
		"standings": r.Standings,
		"winners":   r.Winners,
		"reason":    reason,
	})
}

func (e *Engine) Result() (models.GameResult, bool) {
	if e.result == nil {
		return models.GameResult{}, false
	}
	return *e.result, true
}

// CardCount is the number of cards across hands and both piles.
func (e *Engine) CardCount() int {
	n := len(e.drawPile) + len(e.discard)
	for _, h := range e.hands {
		n += len(h)
	}
	return n
}
