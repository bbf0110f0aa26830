package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/persistence"
)

const serviceName = "party.Admin"

// Server manages the admin RPC listener.
type Server struct {
	grpc     *grpc.Server
	listener net.Listener
	address  string
}

// NewServer listens on addr and registers admin on a fresh grpc server.
func NewServer(addr string, admin AdminServer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewServerWithListener(listener, admin), nil
}

// NewServerWithListener serves admin on an existing listener.
func NewServerWithListener(listener net.Listener, admin AdminServer) *Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(logUnary))
	RegisterAdminServer(s, admin)
	return &Server{
		grpc:     s,
		listener: listener,
		address:  listener.Addr().String(),
	}
}

// Start serves until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("RPC server error: %v", err)
	}
}

// Stop drains in-flight calls and closes the listener.
func (s *Server) Stop() {
	logger.Log.Info("Stopping RPC server.")
	s.grpc.GracefulStop()
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Log.Debugw("rpc failed", "method", info.FullMethod, "error", err, "took", time.Since(start))
		return nil, toStatus(err)
	}
	logger.Log.Debugw("rpc", "method", info.FullMethod, "took", time.Since(start))
	return resp, nil
}

// toStatus maps the domain error taxonomy onto grpc codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, persistence.ErrRecordNotFound):
		code = codes.NotFound
	case errors.Is(err, models.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, models.ErrValidationFailed):
		code = codes.InvalidArgument
	case errors.Is(err, models.ErrNotAuthorized):
		code = codes.PermissionDenied
	case errors.Is(err, models.ErrRoomFull):
		code = codes.ResourceExhausted
	case errors.Is(err, models.ErrPreconditionFailed), errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrInvalidTurn):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

// AdminServer is the admin surface over rooms and game history.
type AdminServer interface {
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsReply, error)
	GetRoom(context.Context, *RoomRequest) (*RoomReply, error)
	CloseRoom(context.Context, *RoomRequest) (*Empty, error)
	RecentGames(context.Context, *RecentGamesRequest) (*GamesReply, error)
	PlayerHistory(context.Context, *PlayerHistoryRequest) (*PlayerHistoryReply, error)
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListRooms", AdminServer.ListRooms),
		unary("GetRoom", AdminServer.GetRoom),
		unary("CloseRoom", AdminServer.CloseRoom),
		unary("RecentGames", AdminServer.RecentGames),
		unary("PlayerHistory", AdminServer.PlayerHistory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "party/admin.json",
}

// unary adapts a typed method into a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(AdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
