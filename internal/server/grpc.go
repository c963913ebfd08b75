// Package server exposes the game hub as the catan.v1.GameService gRPC
// service. Requests and responses are google.protobuf.Struct messages
// carrying the same fields as the websocket protocol.
package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/spectate"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "catan.v1.GameService"

// GameServiceServer is the server API for the game service.
type GameServiceServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Redo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGames(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReplay(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// catanServer implements GameServiceServer on top of the hub.
type catanServer struct {
	hub           *spectate.Hub
	logger        *zap.Logger
	serverVersion string
}

var _ GameServiceServer = (*catanServer)(nil)

// NewCatanServer creates the service implementation.
func NewCatanServer(hub *spectate.Hub, serverVersion string, logger *zap.Logger) GameServiceServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catanServer{
		hub:           hub,
		logger:        logger,
		serverVersion: serverVersion,
	}
}

// NewGRPCServer builds a gRPC server with the game and health services
// registered.
func NewGRPCServer(cfg config.GRPCConfig, svc GameServiceServer, logger *zap.Logger) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
	}
	if cfg.KeepaliveTime > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}))
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams))
	}

	grpcServer := grpc.NewServer(opts...)
	RegisterGameServiceServer(grpcServer, svc)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return grpcServer
}

// Ping reports the server version and time.
func (s *catanServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"version": s.serverVersion,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"peer":    extractHostFromContext(ctx),
	})
}

// Helper function to extract host from context
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// RegisterGameServiceServer registers svc on s.
func RegisterGameServiceServer(s grpc.ServiceRegistrar, svc GameServiceServer) {
	s.RegisterService(&gameServiceDesc, svc)
}

func unaryHandler(method string, call func(GameServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GameServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GameServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Ping", GameServiceServer.Ping),
		unaryHandler("CreateGame", GameServiceServer.CreateGame),
		unaryHandler("GetState", GameServiceServer.GetState),
		unaryHandler("Apply", GameServiceServer.Apply),
		unaryHandler("Undo", GameServiceServer.Undo),
		unaryHandler("Redo", GameServiceServer.Redo),
		unaryHandler("SaveGame", GameServiceServer.SaveGame),
		unaryHandler("ListGames", GameServiceServer.ListGames),
		unaryHandler("GetReplay", GameServiceServer.GetReplay),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catan/v1/game.proto",
}

// GameServiceClient is the client API for the game service.
type GameServiceClient interface {
	Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type gameServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGameServiceClient wraps a connection.
func NewGameServiceClient(cc grpc.ClientConnInterface) GameServiceClient {
	return &gameServiceClient{cc: cc}
}

// Call invokes method, e.g. "Apply", with req.
func (c *gameServiceClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if req == nil {
		req = &structpb.Struct{}
	}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
