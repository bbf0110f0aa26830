// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/network"
	"github.com/wfunc/partyserver/room"
	"github.com/wfunc/partyserver/session"
)

// 基于房间的广播器: delivers room output to the sessions bound to the room.
// Each member gets its own sanitized state; nobody ever sees another
// player's snapshot. Sends are fire-and-forget.
type RoomBroadcaster struct {
	sessionManager *session.Manager
	onDrop         func()
}

var _ room.Broadcaster = (*RoomBroadcaster)(nil)

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessionManager: sessionManager}
}

// OnDrop registers a callback for every packet a connection refused.
func (b *RoomBroadcaster) OnDrop(fn func()) {
	b.onDrop = fn
}

func (b *RoomBroadcaster) Deliver(roomID string, out room.Output) {
	sessions := b.sessionManager.InRoom(roomID)
	closed := false

	for _, d := range out.Events {
		data, err := json.Marshal(d.Event)
		if err != nil {
			logger.Log.Errorw("encode event", "room", roomID, "type", d.Event.Type, "error", err)
			continue
		}
		for _, s := range sessions {
			if d.Target == "" || d.Target == s.ID {
				b.send(s, network.MsgTypeEvent, data)
			}
		}
		closed = closed || d.Event.Type == models.EventRoomClosed
	}

	for _, s := range sessions {
		state, ok := out.States[s.ID]
		if !ok {
			continue
		}
		data, err := json.Marshal(state)
		if err != nil {
			logger.Log.Errorw("encode state", "room", roomID, "player", s.ID, "error", err)
			continue
		}
		b.send(s, network.MsgTypeRoomState, data)
	}

	if closed {
		b.sessionManager.UnbindRoom(roomID)
	}
}

// SendTo delivers v to a single session, if it is still connected.
func (b *RoomBroadcaster) SendTo(sessionID string, msgID uint16, v any) {
	s, ok := b.sessionManager.Get(sessionID)
	if !ok {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorw("encode message", "conn", sessionID, "msg", msgID, "error", err)
		return
	}
	b.send(s, msgID, data)
}

func (b *RoomBroadcaster) send(s *session.Session, msgID uint16, data []byte) {
	if err := s.Send(msgID, data); err != nil {
		logger.Log.Debugw("dropped packet", "conn", s.ID, "msg", msgID, "error", err)
		if b.onDrop != nil {
			b.onDrop()
		}
	}
}
