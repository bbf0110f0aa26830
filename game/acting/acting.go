// Package acting implements the two-player charades game: one player acts
// out a movie, the other guesses, and the roles swap every round.
package acting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

// Capacity is the number of players an acting room holds.
const Capacity = 2

const (
	ActionGuessed = "guessed"
	ActionSkip    = "skip"
)

// RoundRecord is one finished round.
type RoundRecord struct {
	Round   int    `json:"round"`
	ActorID string `json:"actorId"`
	Movie   string `json:"movie"`
	Guessed bool   `json:"guessed"`
}

type Engine struct {
	game.Base

	settings models.ActingSettings

	round         int
	order         []string // fixed at start
	actorID       string
	guesserID     string
	movie         *models.Movie
	timeRemaining int
	history       []RoundRecord
	result        *models.GameResult
}

var _ game.Engine = (*Engine)(nil)

func New(roomID string, env game.Env, settings models.ActingSettings) *Engine {
	e := &Engine{
		Base:     game.NewBase(roomID, env),
		settings: settings,
	}

	m := e.Machine
	m.AddTransition(models.PhaseLobby, models.PhasePlaying, nil)
	m.AddTransition(models.PhaseGameOver, models.PhasePlaying, nil)
	m.AddTransition(models.PhasePlaying, models.PhaseRoundComplete, nil)
	m.AddTransition(models.PhasePlaying, models.PhaseGameOver, nil)
	m.AddTransition(models.PhaseRoundComplete, models.PhasePlaying, nil)
	m.AddTransition(models.PhaseRoundComplete, models.PhaseGameOver, nil)

	m.OnExit(models.PhasePlaying, func() { e.Env.Timers.Cancel(timer.PurposeRound) })
	m.OnExit(models.PhaseRoundComplete, func() { e.Env.Timers.Cancel(timer.PurposeNextRound) })
	return e
}

func (e *Engine) Variant() models.Variant {
	return models.VariantActing
}

func (e *Engine) Settings() models.ActingSettings {
	return e.settings
}

func (e *Engine) inGame() bool {
	return e.Machine.Is(models.PhasePlaying, models.PhaseRoundComplete)
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
		return fmt.Errorf("%w: acting needs exactly %d players", models.ErrPreconditionFailed, Capacity)
	}
	if !e.Players.AllReady() {
		return fmt.Errorf("%w: not every player is ready", models.ErrPreconditionFailed)
	}
	movie, err := e.Env.Catalog.RandomMovie(e.Env.Random, e.settings.MovieCategories, "")
	if err != nil {
		return err
	}

	e.Players.ResetScores()
	e.order = []string{e.Players.Players[0].ID, e.Players.Players[1].ID}
	e.round = 0
	e.actorID, e.guesserID = "", ""
	e.history = nil
	e.result = nil
	e.StartedAt = e.Now()

	e.Emit(models.EventGameStarted, playerID, map[string]any{"rounds": e.settings.Rounds})
	e.beginRound(movie)
	return nil
}

// beginRound swaps roles, assigns the movie and arms the countdown.
func (e *Engine) beginRound(movie models.Movie) {
	e.round++
	if e.round == 1 {
		i := e.Env.Random.Intn(len(e.order))
		e.actorID, e.guesserID = e.order[i], e.order[1-i]
	} else {
		e.actorID, e.guesserID = e.guesserID, e.actorID
	}
	e.movie = &movie
	e.timeRemaining = e.settings.TimeLimit
	e.Transition(models.PhasePlaying)

	e.Emit(models.EventRoundStarted, e.actorID, map[string]any{
		"round":         e.round,
		"actorId":       e.actorID,
		"guesserId":     e.guesserID,
		"timeRemaining": e.timeRemaining,
	})
	e.EmitTo(e.actorID, models.EventMovieAssigned, movie)

	if e.settings.TimeLimit > 0 {
		e.Env.Timers.Schedule(timer.PurposeRound, time.Second, time.Second, e.tick)
	}
}

func (e *Engine) tick() {
	if !e.Machine.Is(models.PhasePlaying) {
		return
	}
	e.timeRemaining--
	e.Emit(models.EventTimer, "", map[string]any{"timeRemaining": e.timeRemaining})
	if e.timeRemaining <= 0 {
		e.endRound(false)
	}
}

func (e *Engine) Handle(playerID, action string, payload json.RawMessage) error {
	switch action {
	case ActionGuessed:
		return e.guessed(playerID)
	case ActionSkip:
		return e.skip(playerID)
	}
	return game.UnknownAction(action)
}

func (e *Engine) requireActor(playerID string) error {
	if _, err := e.Member(playerID); err != nil {
		return err
	}
	if err := e.Machine.Require(models.PhasePlaying); err != nil {
		return err
	}
	if playerID != e.actorID {
		return fmt.Errorf("%w: only the actor can do that", models.ErrInvalidTurn)
	}
	return nil
}

func (e *Engine) guessed(playerID string) error {
	if err := e.requireActor(playerID); err != nil {
		return err
	}
	for _, id := range []string{e.actorID, e.guesserID} {
		if p, _ := e.Players.Find(id); p != nil {
			p.Score++
		}
	}
	e.endRound(true)
	return nil
}

func (e *Engine) skip(playerID string) error {
	if err := e.requireActor(playerID); err != nil {
		return err
	}
	movie, err := e.Env.Catalog.RandomMovie(e.Env.Random, e.settings.MovieCategories, e.movie.ID)
	if err != nil {
		return err
	}
	e.movie = &movie
	e.Emit(models.EventMovieChanged, playerID, map[string]any{"round": e.round})
	e.EmitTo(e.actorID, models.EventMovieAssigned, movie)
	return nil
}

func (e *Engine) endRound(guessed bool) {
	e.history = append(e.history, RoundRecord{
		Round:   e.round,
		ActorID: e.actorID,
		Movie:   e.movie.Title,
		Guessed: guessed,
	})
	e.Transition(models.PhaseRoundComplete)
	e.Emit(models.EventRoundEnded, e.actorID, map[string]any{
		"round":   e.round,
		"movie":   e.movie,
		"guessed": guessed,
		"scores":  e.Standings(),
	})

	if e.round >= e.settings.Rounds {
		e.finish(models.ReasonCompleted)
		return
	}
	e.Env.Timers.Schedule(timer.PurposeNextRound, e.Env.NextRoundDelay, 0, e.nextRound)
}

func (e *Engine) nextRound() {
	if !e.Machine.Is(models.PhaseRoundComplete) {
		return
	}
	var exclude string
	if e.movie != nil {
		exclude = e.movie.ID
	}
	movie, err := e.Env.Catalog.RandomMovie(e.Env.Random, e.settings.MovieCategories, exclude)
	if err != nil {
		e.finish(models.ReasonNoContent)
		return
	}
	e.beginRound(movie)
}

func (e *Engine) finish(reason string) {
	e.Transition(models.PhaseGameOver)
	r := e.Base.Finish(models.VariantActing, e.Standings(), reason)
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
