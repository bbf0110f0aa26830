package trivia

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

// Reveal tracks one movie card once it has been turned over.
type Reveal struct {
	Movie      models.Movie `json:"-"`
	Field      models.Field `json:"field"`
	OwnerID    string       `json:"ownerId"`
	RevealedBy string       `json:"revealedBy"`
	Attempted  bool         `json:"attempted"`
	Guessed    bool         `json:"guessed"`
}

// MovieRound is the clue-giving phase. Order is fixed when the phase starts
// and Index only moves forward.
type MovieRound struct {
	Order         []string
	Index         int
	TimeRemaining int
	TurnScore     int
	TimerStarted  bool
	Reveals       map[string]*Reveal // by movie id
	Turns         []TurnRecord
}

func (r *MovieRound) current() string {
	if r.Index >= len(r.Order) {
		return ""
	}
	return r.Order[r.Index]
}

type TurnRecord struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// RoundRecord is kept for every completed movie round.
type RoundRecord struct {
	HeadToHeadWinner string       `json:"headToHeadWinner"`
	Turns            []TurnRecord `json:"turns"`
}

func (e *Engine) startMovieRound() {
	s := e.selection
	e.round = &MovieRound{
		Order:         []string{s.WinnerID, s.LoserID},
		TimeRemaining: e.settings.MovieRoundTime,
		Reveals:       make(map[string]*Reveal),
	}
	e.Transition(models.PhaseMovieRound)
	e.Emit(models.EventMovieRoundStarted, e.round.current(), map[string]any{
		"order":           e.round.Order,
		"currentPlayerId": e.round.current(),
	})
}

// lookup finds which representative owns movieID and in which field.
func (e *Engine) lookup(movieID string) (owner string, field models.Field, movie models.Movie, ok bool) {
	for id, a := range e.selection.Assignments {
		for f, m := range a {
			if m.ID == movieID {
				return id, f, m, true
			}
		}
	}
	return "", "", models.Movie{}, false
}

// ownDone reports whether playerID has revealed and resolved all of their
// own cards. Cards the opponent already used count as resolved.
func (e *Engine) ownDone(playerID string) bool {
	for _, m := range e.selection.Assignments[playerID] {
		r, ok := e.round.Reveals[m.ID]
		if !ok {
			return false
		}
		if r.RevealedBy == playerID && !r.Attempted {
			return false
		}
	}
	return true
}

func (e *Engine) requireTurn(playerID string) error {
	if err := e.Machine.Require(models.PhaseMovieRound); err != nil {
		return err
	}
	if e.round.current() != playerID {
		return fmt.Errorf("%w: not your turn", models.ErrInvalidTurn)
	}
	return nil
}

type movieRequest struct {
	MovieID string `json:"movieId"`
}

func decodeMovie(payload json.RawMessage) (string, error) {
	var req movieRequest
	if err := game.DecodePayload(payload, &req); err != nil {
		return "", err
	}
	if req.MovieID == "" {
		return "", fmt.Errorf("%w: movieId is required", models.ErrValidationFailed)
	}
	return req.MovieID, nil
}

func (e *Engine) reveal(playerID string, payload json.RawMessage) error {
	movieID, err := decodeMovie(payload)
	if err != nil {
		return err
	}
	if err := e.requireTurn(playerID); err != nil {
		return err
	}
	owner, field, movie, ok := e.lookup(movieID)
	if !ok {
		return fmt.Errorf("%w: movie %s is not in play", models.ErrNotFound, movieID)
	}
	if r, seen := e.round.Reveals[movieID]; seen {
		if r.RevealedBy != playerID {
			return fmt.Errorf("%w: movie already used by opponent", models.ErrPreconditionFailed)
		}
		return fmt.Errorf("%w: movie already revealed", models.ErrPreconditionFailed)
	}
	if owner != playerID && !e.ownDone(playerID) {
		return fmt.Errorf("%w: finish your own movies first", models.ErrPreconditionFailed)
	}

	e.round.Reveals[movieID] = &Reveal{Movie: movie, Field: field, OwnerID: owner, RevealedBy: playerID}
	e.Emit(models.EventMovieRevealed, playerID, map[string]any{"movieId": movieID, "field": field, "ownerId": owner})

	if !e.round.TimerStarted {
		e.round.TimerStarted = true
		e.Env.Timers.Schedule(timer.PurposeMovieRound, time.Second, time.Second, e.movieRoundTick)
	}
	return nil
}

func (e *Engine) revealedByTurn(playerID, movieID string) (*Reveal, error) {
	r, ok := e.round.Reveals[movieID]
	if !ok || r.RevealedBy != playerID {
		return nil, fmt.Errorf("%w: movie %s has not been revealed this turn", models.ErrPreconditionFailed, movieID)
	}
	if r.Guessed {
		return nil, fmt.Errorf("%w: movie %s already guessed", models.ErrPreconditionFailed, movieID)
	}
	return r, nil
}

// guess scores the running turn and credits the movie's genre to the
// player's team.
func (e *Engine) guess(playerID string, payload json.RawMessage) error {
	movieID, err := decodeMovie(payload)
	if err != nil {
		return err
	}
	if err := e.requireTurn(playerID); err != nil {
		return err
	}
	r, err := e.revealedByTurn(playerID, movieID)
	if err != nil {
		return err
	}

	r.Guessed = true
	r.Attempted = true
	e.round.TurnScore++
	if t := e.teamOf(playerID); t != nil {
		t.AddGenre(r.Movie.Genre)
	}
	e.Emit(models.EventMovieGuessed, playerID, map[string]any{
		"movie":     r.Movie,
		"turnScore": e.round.TurnScore,
	})
	return nil
}

func (e *Engine) skip(playerID string, payload json.RawMessage) error {
	movieID, err := decodeMovie(payload)
	if err != nil {
		return err
	}
	if err := e.requireTurn(playerID); err != nil {
		return err
	}
	r, err := e.revealedByTurn(playerID, movieID)
	if err != nil {
		return err
	}

	r.Attempted = true
	e.Emit(models.EventMovieSkipped, playerID, map[string]any{"movieId": movieID})
	return nil
}

func (e *Engine) endTurnCommand(playerID string) error {
	if err := e.requireTurn(playerID); err != nil {
		return err
	}
	e.endTurn()
	return nil
}

func (e *Engine) movieRoundTick() {
	if !e.Machine.Is(models.PhaseMovieRound) {
		return
	}
	e.round.TimeRemaining--
	e.Emit(models.EventTimer, "", map[string]any{"timeRemaining": e.round.TimeRemaining})
	if e.round.TimeRemaining <= 0 {
		e.endTurn()
	}
}

// endTurn banks the running score and hands over to the next player in
// order, or ends the game.
func (e *Engine) endTurn() {
	e.Env.Timers.Cancel(timer.PurposeMovieRound)

	r := e.round
	playerID := r.current()
	if p, _ := e.Players.Find(playerID); p != nil {
		p.Score += r.TurnScore
	}
	if t := e.teamOf(playerID); t != nil {
		t.Score += r.TurnScore
	}
	r.Turns = append(r.Turns, TurnRecord{PlayerID: playerID, Score: r.TurnScore})
	e.Emit(models.EventMovieTurnEnded, playerID, map[string]any{"score": r.TurnScore})

	r.Index++
	r.TurnScore = 0
	r.TimerStarted = false
	r.TimeRemaining = e.settings.MovieRoundTime

	if r.Index >= len(r.Order) {
		e.history = append(e.history, RoundRecord{
			HeadToHeadWinner: e.selection.WinnerID,
			Turns:            append([]TurnRecord(nil), r.Turns...),
		})
		e.finish(models.ReasonCompleted)
	}
}
