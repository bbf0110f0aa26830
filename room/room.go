// room/room.go
package room

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/partyserver/clock"
	"github.com/wfunc/partyserver/content"
	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/game/acting"
	"github.com/wfunc/partyserver/game/cards"
	"github.com/wfunc/partyserver/game/trivia"
	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/random"
	"github.com/wfunc/partyserver/timer"
)

// Summary is the public listing entry of a room.
type Summary struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Variant   models.Variant `json:"variant"`
	Phase     models.Phase   `json:"phase"`
	Players   int            `json:"players"`
	Capacity  int            `json:"capacity,omitempty"` // 0 = no fixed limit
	HostID    string         `json:"hostId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Room 是游戏房间的核心结构. The mutex is the room's single-writer gate:
// commands, timer fires and disconnects all run under it.
type Room struct {
	ID        string
	Name      string
	Variant   models.Variant
	CreatedAt time.Time

	mu          sync.Mutex
	engine      game.Engine
	events      *game.Recorder
	broadcaster Broadcaster
	hooks       Hooks
	reported    bool // current result already passed to OnFinished
	closed      bool
}

// --- 房间核心逻辑 ---

// Do runs fn against the engine under the room lock. When fn succeeds the
// buffered events and fresh per-member state are delivered; when it fails
// the events are dropped, since engines never mutate on error.
func (r *Room) Do(fn func(e game.Engine) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: room %s is closed", models.ErrNotFound, r.ID)
	}
	if err := fn(r.engine); err != nil {
		r.events.Drain()
		return err
	}
	r.flush()
	return nil
}

// fire is the gate timer callbacks enter through.
func (r *Room) fire(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	fn()
	r.flush()
}

// flush must be called with the lock held.
func (r *Room) flush() {
	out := Output{Events: r.events.Drain()}
	roster := r.engine.Roster()
	out.States = make(map[string]any, roster.Len())
	for _, p := range roster.Players {
		out.States[p.ID] = r.engine.Snapshot(p.ID)
	}

	res, done := r.engine.Result()
	if !done {
		r.reported = false
	} else if !r.reported {
		r.reported = true
		if r.hooks.OnFinished != nil {
			r.hooks.OnFinished(res)
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.Deliver(r.ID, out)
	}
	if r.hooks.OnChanged != nil {
		r.hooks.OnChanged(r.summaryLocked())
	}
}

func (r *Room) Join(playerID, name string) (*models.Player, error) {
	var joined models.Player
	err := r.Do(func(e game.Engine) error {
		p, err := e.Join(playerID, name)
		if err != nil {
			return err
		}
		joined = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &joined, nil
}

// Leave removes the player and reports whether the room is now empty.
func (r *Room) Leave(playerID string) (bool, error) {
	empty := false
	err := r.Do(func(e game.Engine) error {
		if err := e.Leave(playerID); err != nil {
			return err
		}
		empty = e.Roster().Len() == 0
		return nil
	})
	return empty, err
}

func (r *Room) SetReady(playerID string) error {
	return r.Do(func(e game.Engine) error { return e.SetReady(playerID) })
}

func (r *Room) Start(playerID string) error {
	return r.Do(func(e game.Engine) error { return e.Start(playerID) })
}

func (r *Room) UpdateSettings(playerID string, raw json.RawMessage) error {
	return r.Do(func(e game.Engine) error { return e.UpdateSettings(playerID, raw) })
}

func (r *Room) Handle(playerID, action string, payload json.RawMessage) error {
	return r.Do(func(e game.Engine) error { return e.Handle(playerID, action, payload) })
}

// Snapshot 获取某个玩家视角的房间状态
func (r *Room) Snapshot(viewerID string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Snapshot(viewerID)
}

// Members returns the ids of the players in the room, in roster order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := r.engine.Roster()
	ids := make([]string, 0, roster.Len())
	for _, p := range roster.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r *Room) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *Room) summaryLocked() Summary {
	s := Summary{
		ID:        r.ID,
		Name:      r.Name,
		Variant:   r.Variant,
		Phase:     r.engine.Phase(),
		Players:   r.engine.Roster().Len(),
		Capacity:  capacityOf(r.Variant),
		CreatedAt: r.CreatedAt,
	}
	if h := r.engine.Roster().Host(); h != nil {
		s.HostID = h.ID
	}
	return s
}

// open reports whether a new player could join right now.
func (r *Room) open() bool {
	s := r.Summary()
	return s.Phase == models.PhaseLobby && (s.Capacity == 0 || s.Players < s.Capacity)
}

// Close 关闭房间: cancels every timer and tells the members the room is
// gone. Later commands fail with NotFound.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.engine.Close()
	r.events.Broadcast(models.Event{Type: models.EventRoomClosed, RoomID: r.ID, Timestamp: time.Now()})
	if r.broadcaster != nil {
		r.broadcaster.Deliver(r.ID, Output{Events: r.events.Drain()})
	}
}

func capacityOf(v models.Variant) int {
	switch v {
	case models.VariantActing:
		return acting.Capacity
	case models.VariantCards:
		return cards.Capacity
	}
	return 0
}

// --- 房间管理器 ---

// Options are the shared dependencies every room is built from.
type Options struct {
	Timers         *timer.TimerManager
	Clock          clock.Clock
	Random         random.Random
	Catalog        *content.Catalog
	Defaults       models.DefaultSettings
	TieBreak       models.TieBreak
	NextRoundDelay time.Duration
	Broadcaster    Broadcaster
	Hooks          Hooks

	// NewScheduler builds a room's timer set around its gate. Defaults to a
	// timer.Set on Timers.
	NewScheduler func(gate func(fn func())) timer.Scheduler
}

// Manager 管理所有房间
type Manager struct {
	opts  Options
	rooms map[string]*Room
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Random == nil {
		opts.Random = random.New()
	}
	if opts.Catalog == nil {
		opts.Catalog = content.Default()
	}
	if opts.TieBreak == "" {
		opts.TieBreak = models.TieBreakRosterOrder
	}
	if opts.NewScheduler == nil {
		tm := opts.Timers
		opts.NewScheduler = func(gate func(fn func())) timer.Scheduler {
			return timer.NewSet(tm, gate)
		}
	}
	return &Manager{
		opts:  opts,
		rooms: make(map[string]*Room),
	}
}

// CreateRoom builds a room for variant with the default settings overlaid
// by raw. An empty id gets a generated four-letter code.
func (m *Manager) CreateRoom(id, name string, variant models.Variant, raw json.RawMessage) (*Room, error) {
	if _, err := models.ParseVariant(string(variant)); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if id == "" {
		id = m.generateID()
	}
	if _, exists := m.rooms[id]; exists {
		return nil, fmt.Errorf("%w: room %s", models.ErrAlreadyExists, id)
	}

	r := &Room{
		ID:          id,
		Name:        name,
		Variant:     variant,
		CreatedAt:   m.opts.Clock.Now(),
		events:      &game.Recorder{},
		broadcaster: m.opts.Broadcaster,
		hooks:       m.opts.Hooks,
	}
	sched := m.opts.NewScheduler(r.fire)
	if set, ok := sched.(*timer.Set); ok && m.opts.Hooks.OnTimerFire != nil {
		onFire := m.opts.Hooks.OnTimerFire
		set.OnFire(func(p timer.Purpose) { onFire(variant, p) })
	}

	env := game.Env{
		Clock:          m.opts.Clock,
		Random:         m.opts.Random,
		Timers:         sched,
		Out:            r.events,
		Catalog:        m.opts.Catalog,
		TieBreak:       m.opts.TieBreak,
		NextRoundDelay: m.opts.NextRoundDelay,
	}
	engine, err := newEngine(id, variant, env, m.opts.Defaults, raw)
	if err != nil {
		return nil, err
	}
	r.engine = engine
	m.rooms[id] = r

	logger.Log.Infow("room created", "room", id, "variant", variant)
	return r, nil
}

func newEngine(id string, variant models.Variant, env game.Env, defaults models.DefaultSettings, raw json.RawMessage) (game.Engine, error) {
	switch variant {
	case models.VariantActing:
		s, err := game.DecodeSettings(raw, defaults.Acting)
		if err != nil {
			return nil, err
		}
		return acting.New(id, env, s), nil
	case models.VariantTrivia:
		s, err := game.DecodeSettings(raw, defaults.Trivia)
		if err != nil {
			return nil, err
		}
		return trivia.New(id, env, s), nil
	case models.VariantCards:
		s, err := game.DecodeSettings(raw, defaults.Cards)
		if err != nil {
			return nil, err
		}
		return cards.New(id, env, s), nil
	}
	return nil, fmt.Errorf("%w: unknown game variant %q", models.ErrValidationFailed, variant)
}

// generateID must be called with the lock held.
func (m *Manager) generateID() string {
	for {
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
		if _, taken := m.rooms[id]; !taken {
			return id
		}
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, fmt.Errorf("%w: room %s", models.ErrNotFound, id)
	}
	return room, nil
}

// RemoveRoom 从管理器中移除并关闭一个房间. Removing an unknown id is a no-op.
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	delete(m.rooms, id)
	m.mutex.Unlock()

	if exists {
		room.Close()
		if m.opts.Hooks.OnRemoved != nil {
			m.opts.Hooks.OnRemoved(id)
		}
		logger.Log.Infow("room removed", "room", id)
	}
}

// CloseRoom is RemoveRoom for callers that need to know the room existed.
func (m *Manager) CloseRoom(id string) error {
	if _, err := m.GetRoom(id); err != nil {
		return err
	}
	m.RemoveRoom(id)
	return nil
}

// Leave removes playerID from the room and deletes the room once it is
// empty.
func (m *Manager) Leave(roomID, playerID string) error {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return err
	}
	empty, err := room.Leave(playerID)
	if err != nil {
		return err
	}
	if empty {
		m.RemoveRoom(roomID)
	}
	return nil
}

// FindAvailableRoom 查找一个可用的房间: the oldest lobby of variant that
// still has a free seat.
func (m *Manager) FindAvailableRoom(variant models.Variant) (*Room, bool) {
	for _, room := range m.Rooms() {
		if room.Variant == variant && room.open() {
			return room, true
		}
	}
	return nil, false
}

// Rooms returns every room, oldest first.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (m *Manager) Summaries() []Summary {
	rooms := m.Rooms()
	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out
}

// CountByVariant feeds the rooms gauge.
func (m *Manager) CountByVariant() map[models.Variant]int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counts := map[models.Variant]int{
		models.VariantActing: 0,
		models.VariantTrivia: 0,
		models.VariantCards:  0,
	}
	for _, r := range m.rooms {
		counts[r.Variant]++
	}
	return counts
}

func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// CloseAll shuts every room down, for server shutdown.
func (m *Manager) CloseAll() {
	for _, r := range m.Rooms() {
		m.RemoveRoom(r.ID)
	}
}
