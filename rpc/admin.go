package rpc

import (
	"context"

	"github.com/wfunc/partyserver/room"
	"github.com/wfunc/partyserver/services"
	"github.com/wfunc/partyserver/store"
)

// AdminService is the struct that exposes RPC methods.
type AdminService struct {
	rooms   *room.Manager
	index   store.RoomIndex
	history *services.HistoryService
}

var _ AdminServer = (*AdminService)(nil)

// NewAdminService lists rooms from index, which may be the redis index
// shared by several servers.
func NewAdminService(rooms *room.Manager, index store.RoomIndex, history *services.HistoryService) *AdminService {
	return &AdminService{rooms: rooms, index: index, history: history}
}

func (a *AdminService) ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsReply, error) {
	all, err := a.index.List(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]room.Summary, 0, len(all))
	for _, s := range all {
		if req.Variant == "" || s.Variant == req.Variant {
			rooms = append(rooms, s)
		}
	}
	return &ListRoomsReply{Rooms: rooms}, nil
}

func (a *AdminService) GetRoom(_ context.Context, req *RoomRequest) (*RoomReply, error) {
	r, err := a.rooms.GetRoom(req.RoomID)
	if err != nil {
		return nil, err
	}
	return &RoomReply{Room: r.Summary()}, nil
}

// CloseRoom evicts every player and removes the room.
func (a *AdminService) CloseRoom(_ context.Context, req *RoomRequest) (*Empty, error) {
	if err := a.rooms.CloseRoom(req.RoomID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (a *AdminService) RecentGames(ctx context.Context, req *RecentGamesRequest) (*GamesReply, error) {
	games, err := a.history.Recent(ctx, req.Variant, req.Limit)
	if err != nil {
		return nil, err
	}
	return &GamesReply{Games: games}, nil
}

func (a *AdminService) PlayerHistory(ctx context.Context, req *PlayerHistoryRequest) (*PlayerHistoryReply, error) {
	stats, games, err := a.history.PlayerHistory(ctx, req.Name, req.Limit)
	if err != nil {
		return nil, err
	}
	return &PlayerHistoryReply{Stats: stats, Games: games}, nil
}
