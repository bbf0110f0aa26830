// Package game defines the contract shared by the variant engines and the
// header every engine embeds.
package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/partyserver/clock"
	"github.com/wfunc/partyserver/content"
	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/random"
	"github.com/wfunc/partyserver/state"
	"github.com/wfunc/partyserver/timer"
)

// Emitter receives notification events. Broadcast goes to the whole room,
// SendTo to one player.
type Emitter interface {
	Broadcast(evt models.Event)
	SendTo(playerID string, evt models.Event)
}

// Env is everything an engine needs from outside its room.
type Env struct {
	Clock          clock.Clock
	Random         random.Random
	Timers         timer.Scheduler
	Out            Emitter
	Catalog        *content.Catalog
	TieBreak       models.TieBreak
	NextRoundDelay time.Duration
}

// Engine is one room's game. All methods are called with the room lock held
// and must validate fully before mutating: a returned error means nothing
// changed.
type Engine interface {
	Variant() models.Variant
	Phase() models.Phase
	Roster() *models.Roster

	// Join adds a player, or returns the existing entry for a repeat join.
	Join(playerID, name string) (*models.Player, error)
	Leave(playerID string) error
	SetReady(playerID string) error
	Start(playerID string) error
	UpdateSettings(playerID string, raw json.RawMessage) error
	// Handle runs a variant-specific command.
	Handle(playerID, action string, payload json.RawMessage) error

	// Snapshot is the client-safe projection of the room as seen by viewerID.
	// An empty viewerID yields the spectator view.
	Snapshot(viewerID string) any
	// Result is available once the game has ended.
	Result() (models.GameResult, bool)
	// Close cancels every timer the engine owns.
	Close()
}

// Base is the common header: room id, roster, phase machine and
// environment.
type Base struct {
	RoomID    string
	Players   models.Roster
	Env       Env
	Machine   *state.BaseStateMachine
	StartedAt time.Time
}

func NewBase(roomID string, env Env) Base {
	return Base{
		RoomID:  roomID,
		Env:     env,
		Machine: state.NewBaseStateMachine(models.PhaseLobby),
	}
}

func (b *Base) Roster() *models.Roster {
	return &b.Players
}

func (b *Base) Phase() models.Phase {
	return b.Machine.GetCurrentState()
}

func (b *Base) Now() time.Time {
	return b.Env.Clock.Now()
}

func (b *Base) Close() {
	b.Env.Timers.CancelAll()
}

// Transition moves the phase machine. Engines only request transitions they
// registered, so a failure is a programming error and is logged.
func (b *Base) Transition(to models.Phase) {
	if err := b.Machine.ChangeState(to); err != nil {
		logger.Log.Errorw("phase transition rejected", "room", b.RoomID, "to", to, "error", err)
	}
}

// Finish builds the result for a game that just ended.
func (b *Base) Finish(variant models.Variant, standings []models.Standing, reason string) models.GameResult {
	ranked, winners := models.Rank(standings, b.Env.TieBreak)
	return models.GameResult{
		RoomID:     b.RoomID,
		Variant:    variant,
		Standings:  ranked,
		Winners:    winners,
		Reason:     reason,
		StartedAt:  b.StartedAt,
		FinishedAt: b.Now(),
	}
}

func (b *Base) event(t models.EventType, playerID string, payload any) models.Event {
	return models.Event{
		Type:      t,
		RoomID:    b.RoomID,
		PlayerID:  playerID,
		Payload:   payload,
		Timestamp: b.Now(),
	}
}

// Emit broadcasts an event to the room.
func (b *Base) Emit(t models.EventType, playerID string, payload any) {
	b.Env.Out.Broadcast(b.event(t, playerID, payload))
}

// EmitTo sends an event to a single player.
func (b *Base) EmitTo(target string, t models.EventType, payload any) {
	b.Env.Out.SendTo(target, b.event(t, target, payload))
}

func (b *Base) Member(id string) (*models.Player, error) {
	p, _ := b.Players.Find(id)
	if p == nil {
		return nil, fmt.Errorf("%w: player %s is not in room %s", models.ErrNotFound, id, b.RoomID)
	}
	return p, nil
}

func (b *Base) RequireHost(id string) error {
	if _, err := b.Member(id); err != nil {
		return err
	}
	if !b.Players.IsHost(id) {
		return fmt.Errorf("%w: only the host can do that", models.ErrNotAuthorized)
	}
	return nil
}

// JoinPlayer adds a player when there is room. A repeat join returns the
// existing entry unchanged.
func (b *Base) JoinPlayer(id, name string, capacity int) (*models.Player, error) {
	if p, _ := b.Players.Find(id); p != nil {
		return p, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: player name is required", models.ErrValidationFailed)
	}
	if capacity > 0 && b.Players.Len() >= capacity {
		return nil, fmt.Errorf("%w: room %s holds %d players", models.ErrRoomFull, b.RoomID, capacity)
	}

	p := &models.Player{ID: id, Name: name}
	b.Players.Add(p)
	b.Emit(models.EventPlayerJoined, id, map[string]any{"name": name, "isHost": p.IsHost})
	return p, nil
}

// RemovePlayer drops a member and announces the new host, if any.
func (b *Base) RemovePlayer(id string) (*models.Player, error) {
	p, ok := b.Players.Remove(id)
	if !ok {
		return nil, fmt.Errorf("%w: player %s is not in room %s", models.ErrNotFound, id, b.RoomID)
	}
	payload := map[string]any{"name": p.Name}
	if h := b.Players.Host(); h != nil {
		payload["hostId"] = h.ID
	}
	b.Emit(models.EventPlayerLeft, id, payload)
	return p, nil
}

func (b *Base) ToggleReady(id string) error {
	p, err := b.Member(id)
	if err != nil {
		return err
	}
	p.IsReady = !p.IsReady
	b.Emit(models.EventPlayerReady, id, map[string]any{"isReady": p.IsReady})
	return nil
}

// Standings returns the roster as unranked standings.
func (b *Base) Standings() []models.Standing {
	out := make([]models.Standing, 0, b.Players.Len())
	for _, p := range b.Players.Players {
		out = append(out, models.Standing{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

// DecodeSettings overlays raw onto a copy of current. Fields absent from raw
// keep their current value.
func DecodeSettings[T interface{ Validate() error }](raw json.RawMessage, current T) (T, error) {
	if len(raw) == 0 {
		return current, nil
	}
	// round-trip so slices in next never share backing arrays with current
	base, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	var next T
	if err := json.Unmarshal(base, &next); err != nil {
		return current, err
	}
	if err := json.Unmarshal(raw, &next); err != nil {
		return current, fmt.Errorf("%w: settings: %v", models.ErrValidationFailed, err)
	}
	if err := next.Validate(); err != nil {
		return current, err
	}
	return next, nil
}

// DecodePayload unmarshals a command payload.
func DecodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", models.ErrValidationFailed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: payload: %v", models.ErrValidationFailed, err)
	}
	return nil
}

// UnknownAction is the error for an action the engine does not handle.
func UnknownAction(action string) error {
	return fmt.Errorf("%w: unknown action %q", models.ErrValidationFailed, action)
}
