package rpc

import (
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/room"
)

type ListRoomsRequest struct {
	Variant models.Variant `json:"variant,omitempty"`
}

type ListRoomsReply struct {
	Rooms []room.Summary `json:"rooms"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type RoomReply struct {
	Room room.Summary `json:"room"`
}

type Empty struct{}

type RecentGamesRequest struct {
	Variant models.Variant `json:"variant,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

type GamesReply struct {
	Games []models.GameRecord `json:"games"`
}

type PlayerHistoryRequest struct {
	Name  string `json:"name"`
	Limit int    `json:"limit,omitempty"`
}

type PlayerHistoryReply struct {
	Stats models.PlayerStats  `json:"stats"`
	Games []models.GameRecord `json:"games"`
}
