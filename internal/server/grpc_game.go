package server

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hexlog/catan-server-go/internal/spectate"
)

// CreateGame starts a game. The request carries players, and optionally
// game_id and seed.
func (s *catanServer) CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandCreate, req)
}

// GetState returns the public state of a game.
func (s *catanServer) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandState, req)
}

// Apply runs one action: game_id, seat, action and params.
func (s *catanServer) Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandAction, req)
}

// Undo reverts the latest action of a game.
func (s *catanServer) Undo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandUndo, req)
}

// Redo re-applies the latest undone action of a game.
func (s *catanServer) Redo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandRedo, req)
}

// SaveGame writes the game's snapshot to the store.
func (s *catanServer) SaveGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandSave, req)
}

// ListGames returns the most recently stored games.
func (s *catanServer) ListGames(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandList, req)
}

// GetReplay returns one recorded frame of a game: game_id and frame.
func (s *catanServer) GetReplay(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.dispatch(ctx, spectate.CommandReplay, req)
}

func (s *catanServer) dispatch(ctx context.Context, cmdType string, req *structpb.Struct) (*structpb.Struct, error) {
	cmd, err := toCommand(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	cmd.Type = cmdType

	payload, err := s.hub.Call(ctx, cmd)
	if err != nil {
		return nil, toStatus(err)
	}
	if cmdType == spectate.CommandAction {
		s.logger.Debug("action applied over grpc",
			zap.String("game_id", cmd.GameID),
			zap.String("action", cmd.Action),
			zap.Int("seat", cmd.Seat),
		)
	}
	return toStruct(payload)
}

// toCommand maps a request struct onto the websocket command shape.
func toCommand(req *structpb.Struct) (spectate.Command, error) {
	var cmd spectate.Command
	if req == nil {
		return cmd, nil
	}
	data, err := protojson.Marshal(req)
	if err != nil {
		return cmd, err
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}

func toStruct(payload map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// toStatus converts hub and engine errors to gRPC status errors.
func toStatus(err error) error {
	switch {
	case errors.Is(err, spectate.ErrHubStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}
