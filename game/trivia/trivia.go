// Package trivia implements the team movie-trivia game: a timed head-to-head
// duel between team representatives decides who picks movies first, then
// each representative gives clues for their three movies.
package trivia

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/timer"
)

const (
	ActionCreateTeam      = "create-team"
	ActionJoinTeam        = "join-team"
	ActionLeaveTeam       = "leave-team"
	ActionHeadToHeadReady = "head-to-head-ready"
	ActionTurnCompleted   = "turn-completed"
	ActionSelectMovies    = "select-movies"
	ActionReveal          = "reveal"
	ActionGuess           = "guess"
	ActionSkip            = "skip"
	ActionEndTurn         = "end-turn"
)

// poolSize is the number of movies dealt for selection; each representative
// assigns half of them.
const poolSize = 6

type Engine struct {
	game.Base

	settings models.TriviaSettings
	teams    []*models.Team
	teamSeq  int

	duel      *HeadToHead
	selection *Selection
	round     *MovieRound
	history   []RoundRecord
	result    *models.GameResult
}

var _ game.Engine = (*Engine)(nil)

func New(roomID string, env game.Env, settings models.TriviaSettings) *Engine {
	e := &Engine{
		Base:     game.NewBase(roomID, env),
		settings: settings,
	}

	m := e.Machine
	m.AddTransition(models.PhaseLobby, models.PhaseHeadToHead, nil)
	m.AddTransition(models.PhaseGameOver, models.PhaseHeadToHead, nil)
	m.AddTransition(models.PhaseHeadToHead, models.PhaseMovieSelection, nil)
	m.AddTransition(models.PhaseMovieSelection, models.PhaseMovieRound, nil)
	for _, p := range []models.Phase{models.PhaseHeadToHead, models.PhaseMovieSelection, models.PhaseMovieRound} {
		m.AddTransition(p, models.PhaseGameOver, nil)
	}

	m.OnExit(models.PhaseHeadToHead, func() {
		e.Env.Timers.Cancel(timer.PurposeCountdown)
		e.Env.Timers.Cancel(timer.PurposeHeadToHead)
	})
	m.OnExit(models.PhaseMovieRound, func() { e.Env.Timers.Cancel(timer.PurposeMovieRound) })
	return e
}

func (e *Engine) Variant() models.Variant {
	return models.VariantTrivia
}

func (e *Engine) Settings() models.TriviaSettings {
	return e.settings
}

func (e *Engine) Teams() []*models.Team {
	return e.teams
}

func (e *Engine) inGame() bool {
	return e.Machine.Is(models.PhaseHeadToHead, models.PhaseMovieSelection, models.PhaseMovieRound)
}

func (e *Engine) inLobby() bool {
	return e.Machine.Is(models.PhaseLobby, models.PhaseGameOver)
}

func (e *Engine) team(id string) (*models.Team, error) {
	for _, t := range e.teams {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: team %s", models.ErrNotFound, id)
}

func (e *Engine) teamOf(playerID string) *models.Team {
	for _, t := range e.teams {
		if t.HasMember(playerID) {
			return t
		}
	}
	return nil
}

func (e *Engine) Join(playerID, name string) (*models.Player, error) {
	if p, _ := e.Players.Find(playerID); p != nil {
		return p, nil
	}
	if !e.inLobby() {
		return nil, fmt.Errorf("%w: game in progress", models.ErrInvalidState)
	}
	return e.JoinPlayer(playerID, name, 0)
}

// Leave removes the player. The game keeps going unless the leaver was one
// of the active representatives or their team is now empty.
func (e *Engine) Leave(playerID string) error {
	if _, err := e.RemovePlayer(playerID); err != nil {
		return err
	}

	t := e.teamOf(playerID)
	if t != nil {
		t.RemoveMember(playerID)
		e.Emit(models.EventTeamLeft, playerID, map[string]any{"teamId": t.ID})
	}

	if !e.inGame() {
		if t != nil && len(t.Members) == 0 {
			e.removeTeam(t.ID)
		}
		return nil
	}
	if e.isRepresentative(playerID) || (t != nil && len(t.Members) == 0) {
		e.finish(models.ReasonPlayerLeft)
	}
	return nil
}

func (e *Engine) removeTeam(id string) {
	for i, t := range e.teams {
		if t.ID == id {
			e.teams = append(e.teams[:i], e.teams[i+1:]...)
			return
		}
	}
}

// isRepresentative reports whether playerID is needed for the current
// phase to finish.
func (e *Engine) isRepresentative(playerID string) bool {
	if e.duel != nil && e.duel.isParticipant(playerID) {
		return true
	}
	if e.round != nil {
		for _, id := range e.round.Order {
			if id == playerID {
				return true
			}
		}
	}
	return false
}

// SetReady toggles readiness. Only players on a team can ready up.
func (e *Engine) SetReady(playerID string) error {
	if _, err := e.Member(playerID); err != nil {
		return err
	}
	if !e.inLobby() {
		return fmt.Errorf("%w: game in progress", models.ErrInvalidState)
	}
	if e.teamOf(playerID) == nil {
		return fmt.Errorf("%w: join a team first", models.ErrPreconditionFailed)
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
	for _, t := range e.teams {
		if len(t.Members) > next.MaxPlayersPerTeam {
			return fmt.Errorf("%w: team %s already has %d players", models.ErrValidationFailed, t.Name, len(t.Members))
		}
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
	if len(e.teams) < 2 {
		return fmt.Errorf("%w: need at least 2 teams", models.ErrPreconditionFailed)
	}
	for _, t := range e.teams {
		if len(t.Members) == 0 {
			return fmt.Errorf("%w: team %s has no players", models.ErrPreconditionFailed, t.Name)
		}
	}
	if !e.Players.AllReady() {
		return fmt.Errorf("%w: not every player is ready", models.ErrPreconditionFailed)
	}
	if n := len(e.Env.Catalog.Filter(e.settings.MovieCategories)); n < poolSize {
		return fmt.Errorf("%w: categories %v have %d movies, need %d",
			models.ErrPreconditionFailed, e.settings.MovieCategories, n, poolSize)
	}

	e.Players.ResetScores()
	for _, t := range e.teams {
		t.Score = 0
		t.Genres = nil
	}
	e.selection = nil
	e.round = nil
	e.history = nil
	e.result = nil
	e.StartedAt = e.Now()

	e.Emit(models.EventGameStarted, playerID, map[string]any{"teams": len(e.teams)})
	e.startHeadToHead()
	return nil
}

func (e *Engine) Handle(playerID, action string, payload json.RawMessage) error {
	if _, err := e.Member(playerID); err != nil {
		return err
	}
	switch action {
	case ActionCreateTeam:
		return e.createTeam(playerID, payload)
	case ActionJoinTeam:
		return e.joinTeam(playerID, payload)
	case ActionLeaveTeam:
		return e.leaveTeam(playerID)
	case ActionHeadToHeadReady:
		return e.headToHeadReady(playerID)
	case ActionTurnCompleted:
		return e.turnCompleted(playerID)
	case ActionSelectMovies:
		return e.selectMovies(playerID, payload)
	case ActionReveal:
		return e.reveal(playerID, payload)
	case ActionGuess:
		return e.guess(playerID, payload)
	case ActionSkip:
		return e.skip(playerID, payload)
	case ActionEndTurn:
		return e.endTurnCommand(playerID)
	}
	return game.UnknownAction(action)
}

// --- teams ---

func (e *Engine) createTeam(playerID string, payload json.RawMessage) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := game.DecodePayload(payload, &req); err != nil {
		return err
	}
	if !e.inLobby() {
		return fmt.Errorf("%w: teams are fixed once the game starts", models.ErrInvalidState)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("%w: team name is required", models.ErrValidationFailed)
	}
	for _, t := range e.teams {
		if strings.EqualFold(t.Name, name) {
			return fmt.Errorf("%w: team %q", models.ErrAlreadyExists, name)
		}
	}

	e.teamSeq++
	t := &models.Team{ID: fmt.Sprintf("team-%d", e.teamSeq), Name: name}
	e.teams = append(e.teams, t)
	e.Emit(models.EventTeamCreated, playerID, map[string]any{"teamId": t.ID, "name": t.Name})
	return nil
}

func (e *Engine) joinTeam(playerID string, payload json.RawMessage) error {
	var req struct {
		TeamID string `json:"teamId"`
	}
	if err := game.DecodePayload(payload, &req); err != nil {
		return err
	}
	if !e.inLobby() {
		return fmt.Errorf("%w: teams are fixed once the game starts", models.ErrInvalidState)
	}
	t, err := e.team(req.TeamID)
	if err != nil {
		return err
	}
	if current := e.teamOf(playerID); current != nil {
		return fmt.Errorf("%w: already on team %s", models.ErrPreconditionFailed, current.Name)
	}
	if len(t.Members) >= e.settings.MaxPlayersPerTeam {
		return fmt.Errorf("%w: team %s holds %d players", models.ErrRoomFull, t.Name, e.settings.MaxPlayersPerTeam)
	}

	t.Members = append(t.Members, playerID)
	p, _ := e.Players.Find(playerID)
	p.TeamID = t.ID
	e.Emit(models.EventTeamJoined, playerID, map[string]any{"teamId": t.ID})
	return nil
}

func (e *Engine) leaveTeam(playerID string) error {
	if !e.inLobby() {
		return fmt.Errorf("%w: teams are fixed once the game starts", models.ErrInvalidState)
	}
	t := e.teamOf(playerID)
	if t == nil {
		return fmt.Errorf("%w: not on a team", models.ErrPreconditionFailed)
	}

	t.RemoveMember(playerID)
	p, _ := e.Players.Find(playerID)
	p.TeamID = ""
	p.IsReady = false
	if len(t.Members) == 0 {
		e.removeTeam(t.ID)
	}
	e.Emit(models.EventTeamLeft, playerID, map[string]any{"teamId": t.ID})
	return nil
}

// --- game over ---

// finish ranks teams by the number of distinct genres they guessed.
func (e *Engine) finish(reason string) {
	e.Transition(models.PhaseGameOver)

	standings := make([]models.Standing, 0, len(e.teams))
	for _, t := range e.teams {
		standings = append(standings, models.Standing{ID: t.ID, Name: t.Name, Score: len(t.Genres)})
	}
	r := e.Base.Finish(models.VariantTrivia, standings, reason)
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
