// session/session.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/partyserver/clock"
	"github.com/wfunc/partyserver/network"
)

// Session is one client connection. Its ID doubles as the player id inside
// whatever room it joins.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive time.Time
	roomID     string
	name       string
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, now time.Time) *Session {
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// RoomID 返回当前所在房间, empty when the session is in no room.
func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) Name() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.name
}

func (s *Session) Touch(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = now
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

// SendJSON marshals v and sends it as msgID.
func (s *Session) SendJSON(msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the connection directory: every live session, indexed by id
// and by the room it is bound to.
type Manager struct {
	sessions map[string]*Session
	byRoom   map[string]map[string]*Session
	clock    clock.Clock
	mutex    sync.RWMutex
}

func NewManager(clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		byRoom:   make(map[string]map[string]*Session),
		clock:    clk,
	}
}

// Open registers a new session for conn.
func (m *Manager) Open(id string, conn network.Connection) *Session {
	s := NewSession(id, conn, m.clock.Now())
	m.Add(s)
	return s
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Remove drops the session and its room binding, returning the room it was
// in.
func (m *Manager) Remove(sessionID string) (roomID string, ok bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}
	delete(m.sessions, sessionID)
	roomID = s.RoomID()
	m.unbindLocked(s)
	return roomID, true
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// Bind records that the session plays in roomID under name, replacing any
// previous binding.
func (m *Manager) Bind(sessionID, roomID, name string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	m.unbindLocked(s)
	s.mutex.Lock()
	s.roomID, s.name = roomID, name
	s.mutex.Unlock()

	members := m.byRoom[roomID]
	if members == nil {
		members = make(map[string]*Session)
		m.byRoom[roomID] = members
	}
	members[s.ID] = s
	return true
}

func (m *Manager) Unbind(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		m.unbindLocked(s)
	}
}

// UnbindRoom clears every binding to roomID, for rooms that were closed.
func (m *Manager) UnbindRoom(roomID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, s := range m.byRoom[roomID] {
		m.unbindLocked(s)
	}
	delete(m.byRoom, roomID)
}

func (m *Manager) unbindLocked(s *Session) {
	s.mutex.Lock()
	roomID := s.roomID
	s.roomID, s.name = "", ""
	s.mutex.Unlock()

	if roomID == "" {
		return
	}
	if members := m.byRoom[roomID]; members != nil {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(m.byRoom, roomID)
		}
	}
}

// InRoom returns the sessions bound to roomID.
func (m *Manager) InRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	members := m.byRoom[roomID]
	result := make([]*Session, 0, len(members))
	for _, s := range members {
		result = append(result, s)
	}
	return result
}

func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns every session, for shutdown.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s)
	}
	return result
}
