package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/game"
	"github.com/hexlog/catan-server-go/internal/repository"
	"github.com/hexlog/catan-server-go/internal/server"
	"github.com/hexlog/catan-server-go/internal/spectate"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting catan server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	var recorder *game.ReplayRecorder
	if cfg.Replay.Enabled {
		if err := os.MkdirAll(cfg.Replay.Directory, 0o755); err != nil {
			logger.Fatal("failed to create replay directory", zap.Error(err))
		}
		recorder = game.NewReplayRecorder(logger, cfg.Replay.Directory)
	}

	defaults := game.Config{
		Shuffle:        cfg.Game.Shuffle,
		VictoryTarget:  cfg.Game.VictoryTarget,
		MinLongestRoad: cfg.Game.MinLongestRoad,
		MinLargestArmy: cfg.Game.MinLargestArmy,
		MaxHistory:     cfg.Game.MaxHistory,
	}
	hub := spectate.NewHub(defaults, cfg.Server.WebSocket, store, recorder, logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocket.Path, hub)
	srv := &http.Server{
		Addr:    cfg.Server.WebSocket.Address,
		Handler: mux,
	}

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.Server.GRPC.Enabled {
		grpcListener, err = net.Listen("tcp", cfg.Server.GRPC.Address)
		if err != nil {
			logger.Fatal("failed to listen for grpc", zap.String("address", cfg.Server.GRPC.Address), zap.Error(err))
		}
		grpcServer = server.NewGRPCServer(cfg.Server.GRPC, server.NewCatanServer(hub, version, logger), logger)
	}

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	grp.Go(func() error {
		logger.Info("websocket server listening",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		grp.Go(func() error {
			logger.Info("grpc server listening", zap.String("address", cfg.Server.GRPC.Address))
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", zap.Error(err))
		}
		if grpcServer != nil {
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-shutdownCtx.Done():
				grpcServer.Stop()
			}
		}
		return nil
	})

	if err := grp.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("catan server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
