package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/network"
	"github.com/wfunc/partyserver/room"
	"github.com/wfunc/partyserver/session"
)

const (
	maxNameLength = 32
	codeRateLimit = "rate_limited"
)

var commandNames = map[uint16]string{
	network.MsgTypeCreateRoom:     "create-room",
	network.MsgTypeJoinRoom:       "join-room",
	network.MsgTypeLeaveRoom:      "leave-room",
	network.MsgTypeSetReady:       "set-ready",
	network.MsgTypeStartGame:      "start-game",
	network.MsgTypeUpdateSettings: "update-settings",
	network.MsgTypeGameAction:     "game-action",
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch(s.clock.Now())
	if packet.MsgID == network.MsgTypeHeartbeat {
		_ = sess.Send(network.MsgTypeHeartbeat, nil)
		return
	}

	name, known := commandNames[packet.MsgID]
	if !known {
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.sendError(sess, packet.MsgID, "unknown_message", fmt.Sprintf("unknown message type %d", packet.MsgID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	allowed := s.limiter.Allow(ctx, sess.ID)
	cancel()
	if !allowed {
		s.monitor.IncRateLimited()
		s.sendError(sess, packet.MsgID, codeRateLimit, "too many commands")
		return
	}

	start := time.Now()
	err := s.dispatch(sess, packet)
	result := "ok"
	if err != nil {
		result = models.ErrorCode(err)
		logger.Log.Debugw("command rejected", "conn", sess.ID, "room", sess.RoomID(), "command", name, "error", err)
		s.sendError(sess, packet.MsgID, result, err.Error())
	}
	s.monitor.ObserveCommand(name, result, time.Since(start))
}

func (s *GameServer) dispatch(sess *session.Session, packet *network.Packet) error {
	switch packet.MsgID {
	case network.MsgTypeCreateRoom:
		return s.handleCreateRoom(sess, packet.Data)
	case network.MsgTypeJoinRoom:
		return s.handleJoinRoom(sess, packet.Data)
	case network.MsgTypeLeaveRoom:
		return s.handleLeaveRoom(sess)
	case network.MsgTypeSetReady:
		return s.inRoom(sess, func(r *room.Room) error { return r.SetReady(sess.ID) })
	case network.MsgTypeStartGame:
		return s.inRoom(sess, func(r *room.Room) error { return r.Start(sess.ID) })
	case network.MsgTypeUpdateSettings:
		var req network.UpdateSettingsRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return s.inRoom(sess, func(r *room.Room) error { return r.UpdateSettings(sess.ID, req.Settings) })
	case network.MsgTypeGameAction:
		var req network.GameActionRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		if req.Action == "" {
			return fmt.Errorf("%w: action is required", models.ErrValidationFailed)
		}
		return s.inRoom(sess, func(r *room.Room) error { return r.Handle(sess.ID, req.Action, req.Payload) })
	}
	return nil
}

func (s *GameServer) handleCreateRoom(sess *session.Session, data []byte) error {
	var req network.CreateRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	name, err := playerName(req.PlayerName)
	if err != nil {
		return err
	}
	if current := sess.RoomID(); current != "" {
		return fmt.Errorf("%w: already in room %s", models.ErrInvalidState, current)
	}

	r, err := s.roomManager.CreateRoom(strings.ToUpper(strings.TrimSpace(req.RoomID)), req.RoomName, req.Variant, req.Settings)
	if err != nil {
		return err
	}
	logger.Log.Infow("room created by player", "conn", sess.ID, "room", r.ID, "variant", r.Variant)
	if err := s.join(sess, r, name); err != nil {
		s.roomManager.RemoveRoom(r.ID)
		return err
	}
	return nil
}

// handleJoinRoom joins an existing room, creates it on demand when a variant
// is given, or matches the caller into any open lobby when no id is given.
func (s *GameServer) handleJoinRoom(sess *session.Session, data []byte) error {
	var req network.JoinRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	name, err := playerName(req.PlayerName)
	if err != nil {
		return err
	}
	roomID := strings.ToUpper(strings.TrimSpace(req.RoomID))

	if roomID == "" {
		if req.Variant == "" {
			return fmt.Errorf("%w: roomId or variant is required", models.ErrValidationFailed)
		}
		if r, ok := s.roomManager.FindAvailableRoom(req.Variant); ok {
			return s.join(sess, r, name)
		}
	}

	r, err := s.roomManager.GetRoom(roomID)
	if err == nil {
		return s.join(sess, r, name)
	}
	if req.Variant == "" {
		return err
	}
	if current := sess.RoomID(); current != "" {
		return fmt.Errorf("%w: already in room %s", models.ErrInvalidState, current)
	}
	r, err = s.roomManager.CreateRoom(roomID, "", req.Variant, nil)
	if err != nil {
		return err
	}
	if err := s.join(sess, r, name); err != nil {
		s.roomManager.RemoveRoom(r.ID)
		return err
	}
	return nil
}

// join binds the session before the engine join so the joiner receives the
// first broadcast. Joining the room the session is already in re-delivers
// its current state.
func (s *GameServer) join(sess *session.Session, r *room.Room, name string) error {
	switch current := sess.RoomID(); current {
	case r.ID:
		if err := sess.SendJSON(network.MsgTypeJoined, network.JoinedResponse{RoomID: r.ID, PlayerID: sess.ID}); err != nil {
			return err
		}
		return sess.SendJSON(network.MsgTypeRoomState, r.Snapshot(sess.ID))
	case "":
	default:
		return fmt.Errorf("%w: already in room %s", models.ErrInvalidState, current)
	}

	s.sessionManager.Bind(sess.ID, r.ID, name)
	if _, err := r.Join(sess.ID, name); err != nil {
		s.sessionManager.Unbind(sess.ID)
		return err
	}
	logger.Log.Infow("player joined", "conn", sess.ID, "room", r.ID, "player", name)
	return sess.SendJSON(network.MsgTypeJoined, network.JoinedResponse{RoomID: r.ID, PlayerID: sess.ID})
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) error {
	roomID := sess.RoomID()
	if roomID == "" {
		return fmt.Errorf("%w: not in a room", models.ErrInvalidState)
	}
	err := s.roomManager.Leave(roomID, sess.ID)
	s.sessionManager.Unbind(sess.ID)
	return err
}

func (s *GameServer) inRoom(sess *session.Session, fn func(r *room.Room) error) error {
	roomID := sess.RoomID()
	if roomID == "" {
		return fmt.Errorf("%w: not in a room", models.ErrInvalidState)
	}
	r, err := s.roomManager.GetRoom(roomID)
	if err != nil {
		s.sessionManager.Unbind(sess.ID)
		return err
	}
	return fn(r)
}

func (s *GameServer) sendError(sess *session.Session, msgID uint16, code, message string) {
	resp := network.ErrorResponse{Code: code, Message: message, MsgID: msgID}
	if err := sess.SendJSON(network.MsgTypeError, resp); err != nil {
		s.monitor.IncDroppedPackets()
	}
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", models.ErrValidationFailed)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidationFailed, err)
	}
	return nil
}

func playerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: playerName is required", models.ErrValidationFailed)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: playerName is longer than %d characters", models.ErrValidationFailed, maxNameLength)
	}
	return name, nil
}
