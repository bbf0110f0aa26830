package network

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/partyserver/logger"
)

var (
	ErrPacketTooLarge = errors.New("packet too large")
	ErrConnClosed     = errors.New("connection closed")
	ErrSendQueueFull  = errors.New("send queue full")
)

const (
	headerSize  = 4
	maxPayload  = 0xFFFF
	sendBacklog = 64
	writeWait   = 10 * time.Second
)

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

// EncodePacket 封包: 2字节消息ID + 2字节数据长度 + 数据
func EncodePacket(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > maxPayload {
		return nil, ErrPacketTooLarge
	}
	packet := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[headerSize:], data)
	return packet, nil
}

// DecodePacket 解包. Trailing bytes past the declared length are ignored.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < headerSize {
		return nil, io.ErrShortBuffer
	}
	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])
	if len(data) < headerSize+int(length) {
		return nil, io.ErrShortBuffer
	}
	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[headerSize : headerSize+int(length)],
	}, nil
}

// WSConnection is a gorilla websocket connection. Writes go through a
// buffered queue drained by one writer goroutine, so Send never blocks a
// room; a full queue drops the packet.
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSConnection starts the write pump. backlog bounds the outgoing queue;
// zero means the default.
func NewWSConnection(conn *websocket.Conn, backlog int) *WSConnection {
	if backlog <= 0 {
		backlog = sendBacklog
	}
	c := &WSConnection{
		conn: conn,
		send: make(chan []byte, backlog),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	packet, err := EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- packet:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *WSConnection) writePump() {
	for {
		select {
		case packet := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, packet); err != nil {
				logger.Log.Debugw("websocket write failed", "remote", c.RemoteAddr().String(), "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodePacket(data)
}

// SetHeartbeat arms the read deadline and extends it on every pong. Call it
// before the first ReadPacket.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	deadline := func() { _ = c.conn.SetReadDeadline(time.Now().Add(interval * 2)) }
	deadline()
	c.conn.SetPongHandler(func(string) error {
		deadline()
		return nil
	})
	go c.pinger(interval)
}

func (c *WSConnection) pinger(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSConnection) Close() error {
	err := ErrConnClosed
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
