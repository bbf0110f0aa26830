package trivia

import (
	"fmt"
	"time"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

// Stage is the head-to-head sub-state.
type Stage string

const (
	StageNotReady  Stage = "not-ready"
	StageCountdown Stage = "countdown"
	StageActive    Stage = "active"
	StageEnded     Stage = "ended"
)

const (
	countdownFrom = 3
	submitBonus   = 2 // seconds
)

type Submission struct {
	PlayerID string    `json:"playerId"`
	At       time.Time `json:"at"`
}

// HeadToHead is the timed duel between one representative of each of the
// first two teams.
type HeadToHead struct {
	Stage         Stage                 `json:"stage"`
	Card          models.HeadToHeadCard `json:"card"`
	Participants  [2]string             `json:"participants"`
	TeamIDs       [2]string             `json:"teamIds"`
	TimeRemaining int                   `json:"timeRemaining"`
	Countdown     int                   `json:"countdown"`
	Submissions   []Submission          `json:"submissions"`
	Winner        string                `json:"winner,omitempty"`
}

func (h *HeadToHead) isParticipant(id string) bool {
	return h.Participants[0] == id || h.Participants[1] == id
}

// opponent returns the other participant.
func (h *HeadToHead) opponent(id string) string {
	if h.Participants[0] == id {
		return h.Participants[1]
	}
	return h.Participants[0]
}

func (h *HeadToHead) lastSubmitter() string {
	if len(h.Submissions) == 0 {
		return ""
	}
	return h.Submissions[len(h.Submissions)-1].PlayerID
}

// representative picks the player who speaks for a team. The first member
// is used.
func representative(t *models.Team) string {
	if len(t.Members) == 0 {
		return ""
	}
	return t.Members[0]
}

func (e *Engine) startHeadToHead() {
	a, b := e.teams[0], e.teams[1]
	e.duel = &HeadToHead{
		Stage:         StageNotReady,
		Card:          e.Env.Catalog.RandomHeadToHead(e.Env.Random),
		Participants:  [2]string{representative(a), representative(b)},
		TeamIDs:       [2]string{a.ID, b.ID},
		TimeRemaining: e.settings.HeadToHeadTime,
	}
	if !e.Machine.Is(models.PhaseHeadToHead) {
		e.Transition(models.PhaseHeadToHead)
	}
	e.Emit(models.EventHeadToHeadStarted, "", map[string]any{
		"card":         e.duel.Card,
		"participants": e.duel.Participants,
	})
}

func (e *Engine) requireParticipant(playerID string) error {
	if err := e.Machine.Require(models.PhaseHeadToHead); err != nil {
		return err
	}
	if !e.duel.isParticipant(playerID) {
		return fmt.Errorf("%w: not in this head-to-head", models.ErrNotAuthorized)
	}
	return nil
}

// headToHeadReady arms the 3-2-1 countdown.
func (e *Engine) headToHeadReady(playerID string) error {
	if err := e.requireParticipant(playerID); err != nil {
		return err
	}
	if e.duel.Stage != StageNotReady {
		return fmt.Errorf("%w: head-to-head is %s", models.ErrInvalidState, e.duel.Stage)
	}

	e.duel.Stage = StageCountdown
	e.duel.Countdown = countdownFrom
	e.Emit(models.EventHeadToHeadCountdown, playerID, map[string]any{"countdown": e.duel.Countdown})
	e.Env.Timers.Schedule(timer.PurposeCountdown, time.Second, time.Second, e.countdownTick)
	return nil
}

func (e *Engine) countdownTick() {
	if !e.Machine.Is(models.PhaseHeadToHead) || e.duel.Stage != StageCountdown {
		return
	}
	e.duel.Countdown--
	e.Emit(models.EventHeadToHeadCountdown, "", map[string]any{"countdown": e.duel.Countdown})
	if e.duel.Countdown > 0 {
		return
	}

	e.Env.Timers.Cancel(timer.PurposeCountdown)
	e.duel.Stage = StageActive
	e.Env.Timers.Schedule(timer.PurposeHeadToHead, time.Second, time.Second, e.headToHeadTick)
}

func (e *Engine) headToHeadTick() {
	if !e.Machine.Is(models.PhaseHeadToHead) || e.duel.Stage != StageActive {
		return
	}
	e.duel.TimeRemaining--
	e.Emit(models.EventTimer, "", map[string]any{"timeRemaining": e.duel.TimeRemaining})
	if e.duel.TimeRemaining <= 0 {
		e.endHeadToHead()
	}
}

// turnCompleted records a submission. Participants must alternate.
func (e *Engine) turnCompleted(playerID string) error {
	if err := e.requireParticipant(playerID); err != nil {
		return err
	}
	if e.duel.Stage != StageActive {
		return fmt.Errorf("%w: head-to-head is %s", models.ErrInvalidState, e.duel.Stage)
	}
	if e.duel.lastSubmitter() == playerID {
		return fmt.Errorf("%w: wait for your opponent", models.ErrInvalidTurn)
	}

	e.duel.Submissions = append(e.duel.Submissions, Submission{PlayerID: playerID, At: e.Now()})
	e.duel.TimeRemaining = min(e.duel.TimeRemaining+submitBonus, e.settings.HeadToHeadTime)
	e.Emit(models.EventHeadToHeadSubmission, playerID, map[string]any{
		"timeRemaining": e.duel.TimeRemaining,
		"submissions":   len(e.duel.Submissions),
	})
	return nil
}

// endHeadToHead names the last submitter the winner. A duel nobody played
// is dealt again with a new card.
func (e *Engine) endHeadToHead() {
	e.Env.Timers.Cancel(timer.PurposeHeadToHead)

	winner := e.duel.lastSubmitter()
	if winner == "" {
		e.Emit(models.EventHeadToHeadEnded, "", map[string]any{"winner": nil})
		e.startHeadToHead()
		return
	}

	pool, err := e.Env.Catalog.DrawMovies(e.Env.Random, poolSize, e.settings.MovieCategories)
	if err != nil {
		e.finish(models.ReasonNoContent)
		return
	}

	e.duel.Stage = StageEnded
	e.duel.Winner = winner
	e.selection = newSelection(winner, e.duel.opponent(winner), pool)
	e.Transition(models.PhaseMovieSelection)

	e.Emit(models.EventHeadToHeadEnded, winner, map[string]any{"winner": winner})
	e.Emit(models.EventMovieSelectionStarted, winner, map[string]any{
		"winnerId": e.selection.WinnerID,
		"loserId":  e.selection.LoserID,
	})
}
