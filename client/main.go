package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/network"
	"github.com/wfunc/partyserver/rpc"
)

func main() {
	root := &cobra.Command{
		Use:   "partyctl",
		Short: "Console client and admin tool for the party server",
	}
	root.AddCommand(playCmd(), roomsCmd(), closeCmd(), historyCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --- play ---

func playCmd() *cobra.Command {
	var server, roomID, variant, name string
	var create bool
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a room and type commands (ready, start, leave, settings <json>, <action> [json])",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return play(server, roomID, variant, name, create)
		},
	}
	cmd.Flags().StringVar(&server, "server", "localhost:8080", "server host:port")
	cmd.Flags().StringVar(&roomID, "room", "", "room code; empty matches any open lobby")
	cmd.Flags().StringVar(&variant, "variant", "", "acting, trivia or cards")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&create, "create", false, "create the room instead of joining")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v any) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func play(server, roomID, variant, name string, create bool) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: server, Path: "/ws"}
	fmt.Printf("Connecting to %s\n", u.String())
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	done := make(chan struct{})
	go readLoop(c, done)

	if create {
		err = send(c, network.MsgTypeCreateRoom, network.CreateRoomRequest{RoomID: roomID, Variant: models.Variant(variant), PlayerName: name})
	} else {
		err = send(c, network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: roomID, Variant: models.Variant(variant), PlayerName: name})
	}
	if err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-interrupt:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			msgID, payload, err := parseCommand(line)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				return err
			}
		}
	}
}

// parseCommand turns one console line into a packet.
func parseCommand(line string) (uint16, any, error) {
	word, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var raw json.RawMessage
	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return 0, nil, fmt.Errorf("payload is not valid JSON: %s", rest)
		}
		raw = json.RawMessage(rest)
	}

	switch word {
	case "ready":
		return network.MsgTypeSetReady, nil, nil
	case "start":
		return network.MsgTypeStartGame, nil, nil
	case "leave":
		return network.MsgTypeLeaveRoom, nil, nil
	case "settings":
		if raw == nil {
			return 0, nil, fmt.Errorf("settings needs a JSON object")
		}
		return network.MsgTypeUpdateSettings, network.UpdateSettingsRequest{Settings: raw}, nil
	}
	return network.MsgTypeGameAction, network.GameActionRequest{Action: word, Payload: raw}, nil
}

func readLoop(c *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			fmt.Println("connection closed:", err)
			return
		}
		p, err := network.DecodePacket(message)
		if err != nil {
			fmt.Printf("invalid packet of size %d\n", len(message))
			continue
		}
		fmt.Println(describe(p))
	}
}

func describe(p *network.Packet) string {
	switch p.MsgID {
	case network.MsgTypeEvent:
		var ev models.Event
		if json.Unmarshal(p.Data, &ev) == nil {
			return fmt.Sprintf("<- event %s %s", ev.Type, compact(ev.Payload))
		}
	case network.MsgTypeRoomState:
		return "<- state " + string(p.Data)
	case network.MsgTypeError:
		var e network.ErrorResponse
		if json.Unmarshal(p.Data, &e) == nil {
			return fmt.Sprintf("<- error %s: %s", e.Code, e.Message)
		}
	case network.MsgTypeJoined:
		return "<- joined " + string(p.Data)
	case network.MsgTypeHeartbeat:
		return "<- heartbeat"
	}
	return fmt.Sprintf("<- %d %s", p.MsgID, string(p.Data))
}

func compact(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// --- admin ---

func dialAdmin(addr string) (*rpc.AdminClient, func(), error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return rpc.NewAdminClient(conn), func() { conn.Close() }, nil
}

func adminCommand(use, short string, run func(ctx context.Context, c *rpc.AdminClient) (any, error)) (*cobra.Command, *string) {
	addr := new(string)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, closeFn, err := dialAdmin(*addr)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			out, err := run(ctx, client)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(addr, "rpc", "localhost:9090", "admin RPC address")
	return cmd, addr
}

func roomsCmd() *cobra.Command {
	var variant string
	cmd, _ := adminCommand("rooms", "List live rooms", func(ctx context.Context, c *rpc.AdminClient) (any, error) {
		return c.ListRooms(ctx, &rpc.ListRoomsRequest{Variant: models.Variant(variant)})
	})
	cmd.Flags().StringVar(&variant, "variant", "", "only rooms of this variant")
	return cmd
}

func closeCmd() *cobra.Command {
	var roomID string
	cmd, _ := adminCommand("close", "Close a room and evict its players", func(ctx context.Context, c *rpc.AdminClient) (any, error) {
		return c.CloseRoom(ctx, &rpc.RoomRequest{RoomID: roomID})
	})
	cmd.Flags().StringVar(&roomID, "room", "", "room code")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func historyCmd() *cobra.Command {
	var name, variant string
	var limit int
	cmd, _ := adminCommand("history", "Show recent games, or one player's history with --name", func(ctx context.Context, c *rpc.AdminClient) (any, error) {
		if name != "" {
			return c.PlayerHistory(ctx, &rpc.PlayerHistoryRequest{Name: name, Limit: limit})
		}
		return c.RecentGames(ctx, &rpc.RecentGamesRequest{Variant: models.Variant(variant), Limit: limit})
	})
	cmd.Flags().StringVar(&name, "name", "", "player name")
	cmd.Flags().StringVar(&variant, "variant", "", "only games of this variant")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum games to show")
	return cmd
}
