package trivia

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
)

// Assignment maps each field to the movie a representative gives clues for.
type Assignment map[models.Field]models.Movie

// Selection is the movie-selection phase. The winner picks three of the
// dealt movies; the loser assigns the three that remain.
type Selection struct {
	WinnerID    string
	LoserID     string
	Pool        []models.Movie
	Assignments map[string]Assignment
}

func newSelection(winner, loser string, pool []models.Movie) *Selection {
	return &Selection{
		WinnerID:    winner,
		LoserID:     loser,
		Pool:        pool,
		Assignments: make(map[string]Assignment),
	}
}

func (s *Selection) assigned(movieID string) bool {
	for _, a := range s.Assignments {
		for _, m := range a {
			if m.ID == movieID {
				return true
			}
		}
	}
	return false
}

// Available is the part of the pool playerID may still assign. The loser
// sees nothing until the winner has chosen.
func (s *Selection) Available(playerID string) []models.Movie {
	if _, done := s.Assignments[playerID]; done {
		return nil
	}
	switch playerID {
	case s.WinnerID:
	case s.LoserID:
		if _, ok := s.Assignments[s.WinnerID]; !ok {
			return nil
		}
	default:
		return nil
	}

	out := make([]models.Movie, 0, len(s.Pool))
	for _, m := range s.Pool {
		if !s.assigned(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Selection) complete() bool {
	_, w := s.Assignments[s.WinnerID]
	_, l := s.Assignments[s.LoserID]
	return w && l
}

func (e *Engine) selectMovies(playerID string, payload json.RawMessage) error {
	var req map[models.Field]string
	if err := game.DecodePayload(payload, &req); err != nil {
		return err
	}
	if err := e.Machine.Require(models.PhaseMovieSelection); err != nil {
		return err
	}
	s := e.selection
	if playerID != s.WinnerID && playerID != s.LoserID {
		return fmt.Errorf("%w: only the head-to-head players assign movies", models.ErrNotAuthorized)
	}
	if _, done := s.Assignments[playerID]; done {
		return fmt.Errorf("%w: movies already assigned", models.ErrValidationFailed)
	}
	if playerID == s.LoserID {
		if _, ok := s.Assignments[s.WinnerID]; !ok {
			return fmt.Errorf("%w: the winner chooses first", models.ErrPreconditionFailed)
		}
	}

	available := make(map[string]models.Movie)
	for _, m := range s.Available(playerID) {
		available[m.ID] = m
	}
	assignment := make(Assignment, len(models.Fields))
	used := make(map[string]bool, len(models.Fields))
	for _, f := range models.Fields {
		id := req[f]
		if id == "" {
			return fmt.Errorf("%w: no movie for %s", models.ErrValidationFailed, f)
		}
		if used[id] {
			return fmt.Errorf("%w: movie %s assigned twice", models.ErrValidationFailed, id)
		}
		m, ok := available[id]
		if !ok {
			return fmt.Errorf("%w: movie %s is not available", models.ErrNotFound, id)
		}
		used[id] = true
		assignment[f] = m
	}
	if len(req) != len(models.Fields) {
		return fmt.Errorf("%w: unknown field in assignment", models.ErrValidationFailed)
	}

	s.Assignments[playerID] = assignment
	e.Emit(models.EventMoviesSelected, playerID, nil)
	if s.complete() {
		e.startMovieRound()
	}
	return nil
}
