package broadcast

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/partyserver/game"
	"github.com/wfunc/partyserver/mocks"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/network"
	"github.com/wfunc/partyserver/room"
	"github.com/wfunc/partyserver/session"
)

type MockConnection struct {
	mu   sync.Mutex
	sent []network.Packet
	fail bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("gone")
	}
	m.sent = append(m.sent, network.Packet{MsgID: msgID, Data: data})
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) ids() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint16, len(m.sent))
	for i, p := range m.sent {
		out[i] = p.MsgID
	}
	return out
}

func setup(t *testing.T) (*RoomBroadcaster, *session.Manager, map[string]*MockConnection) {
	t.Helper()
	sessions := session.NewManager(mocks.NewMockClock(time.Unix(0, 0)))
	conns := map[string]*MockConnection{}
	for _, id := range []string{"P1", "P2", "X"} {
		conns[id] = &MockConnection{}
		sessions.Open(id, conns[id])
	}
	sessions.Bind("P1", "ABCD", "Alice")
	sessions.Bind("P2", "ABCD", "Bob")
	sessions.Bind("X", "OTHER", "Xavier")
	return NewRoomBroadcaster(sessions), sessions, conns
}

func TestDeliver_EventsThenOwnState(t *testing.T) {
	b, _, conns := setup(t)

	b.Deliver("ABCD", room.Output{
		Events: []game.Delivery{
			{Event: models.Event{Type: models.EventRoundStarted}},
			{Target: "P1", Event: models.Event{Type: models.EventMovieAssigned}},
		},
		States: map[string]any{
			"P1": map[string]string{"viewer": "P1"},
			"P2": map[string]string{"viewer": "P2"},
		},
	})

	assert.Equal(t, []uint16{network.MsgTypeEvent, network.MsgTypeEvent, network.MsgTypeRoomState}, conns["P1"].ids())
	assert.Equal(t, []uint16{network.MsgTypeEvent, network.MsgTypeRoomState}, conns["P2"].ids())
	assert.Empty(t, conns["X"].ids())

	var state map[string]string
	require.NoError(t, json.Unmarshal(conns["P2"].sent[1].Data, &state))
	assert.Equal(t, "P2", state["viewer"])
}

func TestDeliver_RoomClosedUnbinds(t *testing.T) {
	b, sessions, conns := setup(t)

	b.Deliver("ABCD", room.Output{Events: []game.Delivery{{Event: models.Event{Type: models.EventRoomClosed}}}})

	assert.Equal(t, []uint16{network.MsgTypeEvent}, conns["P1"].ids())
	assert.Empty(t, sessions.InRoom("ABCD"))
	assert.Len(t, sessions.InRoom("OTHER"), 1)
}

func TestDeliver_DroppedSendsAreCounted(t *testing.T) {
	b, _, conns := setup(t)
	conns["P2"].fail = true
	drops := 0
	b.OnDrop(func() { drops++ })

	b.Deliver("ABCD", room.Output{Events: []game.Delivery{{Event: models.Event{Type: models.EventTimer}}}})

	assert.Equal(t, 1, drops)
	assert.Len(t, conns["P1"].ids(), 1)
}

func TestSendTo(t *testing.T) {
	b, _, conns := setup(t)

	b.SendTo("X", network.MsgTypeError, network.ErrorResponse{Code: "not_found"})
	b.SendTo("nobody", network.MsgTypeError, network.ErrorResponse{Code: "not_found"})

	assert.Equal(t, []uint16{network.MsgTypeError}, conns["X"].ids())
}
