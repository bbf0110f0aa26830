package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/wfunc/partyserver/broadcast"
	"github.com/wfunc/partyserver/clock"
	"github.com/wfunc/partyserver/config"
	"github.com/wfunc/partyserver/content"
	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/monitor"
	"github.com/wfunc/partyserver/network"
	"github.com/wfunc/partyserver/persistence"
	"github.com/wfunc/partyserver/random"
	"github.com/wfunc/partyserver/room"
	"github.com/wfunc/partyserver/rpc"
	"github.com/wfunc/partyserver/services"
	"github.com/wfunc/partyserver/session"
	"github.com/wfunc/partyserver/store"
	"github.com/wfunc/partyserver/timer"
)

// Deps are the infrastructure handles main opens. Nil fields fall back to
// in-process implementations.
type Deps struct {
	DB      persistence.Database
	Redis   *redis.Client
	Clock   clock.Clock
	Random  random.Random
	Catalog *content.Catalog
}

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	httpServer     *http.Server
	clock          clock.Clock
	timers         *timer.TimerManager
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    *broadcast.RoomBroadcaster
	history        *services.HistoryService
	index          store.RoomIndex
	publisher      *store.Publisher
	limiter        store.Limiter
	monitor        *monitor.Monitor
	rpcServer      *rpc.Server
	redis          *redis.Client

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

func NewGameServer(cfg *config.Config, deps Deps) (*GameServer, error) {
	defaults, tieBreak, err := cfg.Games.Settings()
	if err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.DB == nil {
		deps.DB = persistence.NewMemory()
	}

	s := &GameServer{
		cfg:            cfg,
		clock:          deps.Clock,
		timers:         timer.NewTimerManager(cfg.Timer.Tick, deps.Clock),
		sessionManager: session.NewManager(deps.Clock),
		history:        services.NewHistoryService(deps.DB),
		monitor:        monitor.NewMonitor("party"),
		redis:          deps.Redis,
		limiter:        store.NopLimiter{},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.broadcaster.OnDrop(s.monitor.IncDroppedPackets)

	s.roomManager = room.NewRoomManager(room.Options{
		Timers:         s.timers,
		Clock:          deps.Clock,
		Random:         deps.Random,
		Catalog:        deps.Catalog,
		Defaults:       defaults,
		TieBreak:       tieBreak,
		NextRoundDelay: cfg.Games.NextRoundDelay,
		Broadcaster:    s.broadcaster,
		Hooks: room.Hooks{
			OnFinished:  s.gameFinished,
			OnTimerFire: s.timerFired,
			OnChanged:   s.roomChanged,
			OnRemoved:   s.roomRemoved,
		},
	})

	if deps.Redis != nil {
		s.index = store.NewRedisIndex(deps.Redis, cfg.Redis.KeyPrefix, cfg.Redis.RoomTTL)
		s.publisher = store.NewPublisher(s.index)
		s.limiter = store.NewRedisLimiter(deps.Redis, cfg.Redis.KeyPrefix, cfg.Redis.RateLimit, cfg.Redis.RateWindow)
	} else {
		s.index = store.NewRegistryIndex(s.roomManager)
	}

	// 初始化RPC服务器
	if cfg.Server.RPCAddress != "" {
		s.rpcServer, err = rpc.NewServer(cfg.Server.RPCAddress, rpc.NewAdminService(s.roomManager, s.index, s.history))
		if err != nil {
			s.timers.Stop()
			return nil, err
		}
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// --- room hooks: run under the room lock, must not block ---

func (s *GameServer) gameFinished(res models.GameResult) {
	s.monitor.IncGamesFinished(string(res.Variant), res.Reason)
	s.history.Record(res)
}

func (s *GameServer) timerFired(variant models.Variant, p timer.Purpose) {
	s.monitor.IncTimerFire(string(variant), string(p))
}

func (s *GameServer) roomChanged(summary room.Summary) {
	if s.publisher != nil {
		s.publisher.Publish(summary)
	}
}

func (s *GameServer) roomRemoved(roomID string) {
	if s.publisher != nil {
		s.publisher.Remove(roomID)
	}
}

// --- lifecycle ---

// Start serves HTTP until Shutdown. The admin RPC server and background
// loops start alongside it.
func (s *GameServer) Start() error {
	ctx := s.ctx

	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}

	if s.publisher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.publisher.Run(ctx)
		}()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.syncLoop(ctx)
	}()

	logger.Log.Infof("Game server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// syncLoop refreshes the room gauges and, with redis, the index TTLs.
func (s *GameServer) syncLoop(ctx context.Context) {
	period := 15 * time.Second
	if ttl := s.cfg.Redis.RoomTTL; s.publisher != nil && ttl > 0 && ttl/2 < period {
		period = ttl / 2
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		s.syncRooms()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *GameServer) syncRooms() {
	counts := make(map[string]int)
	for variant, n := range s.roomManager.CountByVariant() {
		counts[string(variant)] = n
	}
	s.monitor.SetRooms(counts)

	if s.publisher != nil {
		for _, summary := range s.roomManager.Summaries() {
			s.publisher.Publish(summary)
		}
	}
}

// Shutdown stops accepting connections, closes every room and session, and
// waits for pending history writes.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Log.Info("Shutting down game server.")
		err = s.httpServer.Shutdown(ctx)

		for _, sess := range s.sessionManager.All() {
			_ = sess.Close()
		}
		s.roomManager.CloseAll()
		s.timers.Stop()

		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		s.cancel()
		s.wg.Wait()

		if closeErr := s.history.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if s.redis != nil {
			if closeErr := s.redis.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	})
	return err
}

// --- connections ---

func (s *GameServer) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowOrigins
	if len(allowed) == 0 {
		return true // 允许所有跨域请求
	}
	origin := r.Header.Get("Origin")
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	if s.cfg.Server.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.Server.ReadLimit)
	}
	s.handleConnection(network.NewWSConnection(conn, s.cfg.Server.SendBuffer))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := s.sessionManager.Open(uuid.NewString(), conn)
	s.monitor.IncConnections()
	if s.cfg.Server.PingPeriod > 0 {
		conn.SetHeartbeat(s.cfg.Server.PingPeriod)
	}

	logger.Log.Infow("connection opened", "conn", sess.ID, "remote", conn.RemoteAddr().String())
	defer s.disconnect(sess)

	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(sess, packet)
	}
}

// disconnect is a leave for whatever room the session was in.
func (s *GameServer) disconnect(sess *session.Session) {
	s.monitor.DecConnections()
	roomID, _ := s.sessionManager.Remove(sess.ID)
	if roomID != "" {
		if err := s.roomManager.Leave(roomID, sess.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			logger.Log.Warnw("leave on disconnect", "conn", sess.ID, "room", roomID, "error", err)
		}
	}
	_ = sess.Close()
	logger.Log.Infow("connection closed", "conn", sess.ID, "room", roomID)
}

// Rooms exposes the registry, for the admin surface and tests.
func (s *GameServer) Rooms() *room.Manager { return s.roomManager }

func (s *GameServer) Sessions() *session.Manager { return s.sessionManager }

func (s *GameServer) History() *services.HistoryService { return s.history }

func (s *GameServer) Monitor() *monitor.Monitor { return s.monitor }
