package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// AdminClient calls the admin service with the JSON codec.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}

func (c *AdminClient) ListRooms(ctx context.Context, in *ListRoomsRequest) (*ListRoomsReply, error) {
	out := new(ListRoomsReply)
	return out, c.invoke(ctx, "ListRooms", in, out)
}

func (c *AdminClient) GetRoom(ctx context.Context, in *RoomRequest) (*RoomReply, error) {
	out := new(RoomReply)
	return out, c.invoke(ctx, "GetRoom", in, out)
}

func (c *AdminClient) CloseRoom(ctx context.Context, in *RoomRequest) (*Empty, error) {
	out := new(Empty)
	return out, c.invoke(ctx, "CloseRoom", in, out)
}

func (c *AdminClient) RecentGames(ctx context.Context, in *RecentGamesRequest) (*GamesReply, error) {
	out := new(GamesReply)
	return out, c.invoke(ctx, "RecentGames", in, out)
}

func (c *AdminClient) PlayerHistory(ctx context.Context, in *PlayerHistoryRequest) (*PlayerHistoryReply, error) {
	out := new(PlayerHistoryReply)
	return out, c.invoke(ctx, "PlayerHistory", in, out)
}
