package network

import (
	"encoding/json"

	"github.com/wfunc/partyserver/models"
)

// Message ids. 1xx are room commands from clients, 2xx game commands,
// 3xx server pushes.
const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom     = 101
	MsgTypeJoinRoom       = 102
	MsgTypeLeaveRoom      = 103
	MsgTypeSetReady       = 104
	MsgTypeStartGame      = 105
	MsgTypeUpdateSettings = 106

	MsgTypeGameAction = 201

	MsgTypeRoomState = 301
	MsgTypeEvent     = 302
	MsgTypeError     = 303
	MsgTypeJoined    = 304
)

// CreateRoomRequest creates a room and joins the caller as host. An empty
// RoomID asks the server to pick one.
type CreateRoomRequest struct {
	RoomID     string          `json:"roomId"`
	RoomName   string          `json:"roomName,omitempty"`
	Variant    models.Variant  `json:"variant"`
	PlayerName string          `json:"playerName"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

// JoinRoomRequest joins RoomID, or any open lobby of Variant when RoomID is
// empty.
type JoinRoomRequest struct {
	RoomID     string         `json:"roomId"`
	Variant    models.Variant `json:"variant,omitempty"`
	PlayerName string         `json:"playerName"`
}

type UpdateSettingsRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// GameActionRequest carries a variant command such as "guessed" or "play".
type GameActionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinedResponse tells a connection which room it is in and its player id.
type JoinedResponse struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// ErrorResponse goes only to the connection whose command was rejected.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	MsgID   uint16 `json:"msgId"`
}
