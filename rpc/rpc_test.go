package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/persistence"
	"github.com/wfunc/partyserver/room"
	"github.com/wfunc/partyserver/services"
	"github.com/wfunc/partyserver/store"
	"github.com/wfunc/partyserver/timer"
)

type harness struct {
	rooms   *room.Manager
	history *services.HistoryService
	client  *AdminClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rooms := room.NewRoomManager(room.Options{
		Defaults: models.NewDefaultSettings(),
		NewScheduler: func(func(fn func())) timer.Scheduler {
			return timer.NewManual()
		},
	})
	history := services.NewHistoryService(persistence.NewMemory())

	lis := bufconn.Listen(1 << 20)
	srv := NewServerWithListener(lis, NewAdminService(rooms, store.NewRegistryIndex(rooms), history))
	go srv.Start()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		rooms.CloseAll()
	})
	return &harness{rooms: rooms, history: history, client: NewAdminClient(conn)}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestAdmin_Rooms(t *testing.T) {
	h := newHarness(t)
	_, err := h.rooms.CreateRoom("ABCD", "lounge", models.VariantActing, nil)
	require.NoError(t, err)
	_, err = h.rooms.CreateRoom("WXYZ", "den", models.VariantCards, nil)
	require.NoError(t, err)

	all, err := h.client.ListRooms(ctx(t), &ListRoomsRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Rooms, 2)

	cards, err := h.client.ListRooms(ctx(t), &ListRoomsRequest{Variant: models.VariantCards})
	require.NoError(t, err)
	require.Len(t, cards.Rooms, 1)
	assert.Equal(t, "WXYZ", cards.Rooms[0].ID)

	got, err := h.client.GetRoom(ctx(t), &RoomRequest{RoomID: "ABCD"})
	require.NoError(t, err)
	assert.Equal(t, "lounge", got.Room.Name)
	assert.Equal(t, models.PhaseLobby, got.Room.Phase)

	_, err = h.client.CloseRoom(ctx(t), &RoomRequest{RoomID: "ABCD"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.rooms.Len())

	_, err = h.client.GetRoom(ctx(t), &RoomRequest{RoomID: "ABCD"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.client.CloseRoom(ctx(t), &RoomRequest{RoomID: "ABCD"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestAdmin_History(t *testing.T) {
	h := newHarness(t)
	finished := time.Date(2026, 2, 2, 20, 0, 0, 0, time.UTC)
	h.history.Record(models.GameResult{
		RoomID:     "ABCD",
		Variant:    models.VariantTrivia,
		Standings:  []models.Standing{{ID: "t1", Name: "Red", Score: 5}, {ID: "t2", Name: "Blue", Score: 3}},
		Winners:    []string{"t1"},
		Reason:     models.ReasonCompleted,
		StartedAt:  finished.Add(-10 * time.Minute),
		FinishedAt: finished,
	})
	h.history.Wait()

	recent, err := h.client.RecentGames(ctx(t), &RecentGamesRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, recent.Games, 1)
	assert.Equal(t, 600, recent.Games[0].Duration)
	assert.True(t, finished.Equal(recent.Games[0].FinishedAt))

	history, err := h.client.PlayerHistory(ctx(t), &PlayerHistoryRequest{Name: "Red"})
	require.NoError(t, err)
	assert.Equal(t, 1, history.Stats.Wins)
	assert.Len(t, history.Games, 1)

	_, err = h.client.PlayerHistory(ctx(t), &PlayerHistoryRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{models.ErrNotFound, codes.NotFound},
		{persistence.ErrRecordNotFound, codes.NotFound},
		{models.ErrRoomFull, codes.ResourceExhausted},
		{models.ErrInvalidTurn, codes.FailedPrecondition},
		{models.ErrNotAuthorized, codes.PermissionDenied},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, status.Code(toStatus(c.err)), c.err.Error())
	}
}
