package spectate

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/game"
	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/repository"
)

var testPlayers = []string{"alice", "bob", "carol"}

func startHub(t *testing.T, store repository.Store) *httptest.Server {
	t.Helper()
	hub := NewHub(game.Config{}, config.WebSocketConfig{
		SendBuffer:     64,
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
		MaxMessageSize: 1 << 16,
	}, store, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

// expect reads until a message of msgType arrives.
func expect(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg := decodeMessage(t, data)
		if msg["type"] == msgType {
			return msg
		}
	}
}

func payloadOf(msg map[string]any) map[string]any {
	return msg["payload"].(map[string]any)
}

func buildingsOf(state map[string]any) []any {
	return payloadOf(state)["board"].(map[string]any)["buildings"].([]any)
}

func firstEdge(t *testing.T, v board.VertexID) int {
	t.Helper()
	b, err := board.New(board.StandardLayout())
	require.NoError(t, err)
	return int(b.EdgesOf(v)[0])
}

func createGame(t *testing.T, conn *websocket.Conn, gameID string) {
	t.Helper()
	send(t, conn, Command{Type: CommandCreate, RequestID: "create", GameID: gameID, Players: testPlayers, Seed: []uint64{1, 2}})
	ack := expect(t, conn, MessageAck)
	assert.Equal(t, "create", ack["request_id"])
	assert.Equal(t, gameID, ack["game_id"])
	state := expect(t, conn, MessageState)
	assert.Equal(t, "SETUP_FORWARD", payloadOf(state)["phase"])
}

func settle(t *testing.T, conn *websocket.Conn, vertex int) {
	t.Helper()
	send(t, conn, Command{Type: CommandAction, Action: "build_settlement", Seat: 0, Params: ActionParams{Vertex: intp(vertex)}})
	event := expect(t, conn, MessageEvent)
	assert.Equal(t, "APPLIED", payloadOf(event)["event"])
	assert.Equal(t, "BUILD_SETTLEMENT", payloadOf(event)["action"])
	expect(t, conn, MessageAck)
}

func TestHubCreateActUndoRedo(t *testing.T) {
	srv := startHub(t, nil)
	conn := dial(t, srv)
	createGame(t, conn, "g-flow")

	settle(t, conn, 0)
	state := expect(t, conn, MessageState)
	require.Len(t, buildingsOf(state), 1)
	assert.Equal(t, true, payloadOf(state)["can_undo"])

	send(t, conn, Command{Type: CommandAction, RequestID: "end", Action: "END_TURN", Seat: 0})
	errMsg := expect(t, conn, MessageError)
	assert.Equal(t, "end", errMsg["request_id"])
	assert.Equal(t, "ILLEGAL_ACTION", payloadOf(errMsg)["code"])
	assert.Equal(t, "FailedPrecondition", payloadOf(errMsg)["grpc_code"])
	assert.Equal(t, true, payloadOf(errMsg)["recoverable"])

	send(t, conn, Command{Type: CommandUndo})
	assert.Equal(t, "UNDONE", payloadOf(expect(t, conn, MessageEvent))["event"])
	state = expect(t, conn, MessageState)
	assert.Empty(t, buildingsOf(state))
	assert.Equal(t, true, payloadOf(state)["can_redo"])

	send(t, conn, Command{Type: CommandRedo})
	assert.Equal(t, "REDONE", payloadOf(expect(t, conn, MessageEvent))["event"])
	state = expect(t, conn, MessageState)
	assert.Len(t, buildingsOf(state), 1)

	send(t, conn, Command{Type: CommandUndo})
	expect(t, conn, MessageState)
	send(t, conn, Command{Type: CommandUndo, RequestID: "again"})
	errMsg = expect(t, conn, MessageError)
	assert.Equal(t, "NOTHING_TO_UNDO", payloadOf(errMsg)["code"])
	assert.Equal(t, "OutOfRange", payloadOf(errMsg)["grpc_code"])
}

func TestHubBroadcastsToWatchers(t *testing.T) {
	srv := startHub(t, nil)
	owner := dial(t, srv)
	createGame(t, owner, "g-watch")

	watcher := dial(t, srv)
	send(t, watcher, Command{Type: CommandJoin, RequestID: "join", GameID: "g-watch"})
	state := expect(t, watcher, MessageState)
	assert.Equal(t, "join", state["request_id"])
	assert.Empty(t, buildingsOf(state))

	settle(t, owner, 0)
	event := expect(t, watcher, MessageEvent)
	assert.Equal(t, "BUILD_SETTLEMENT", payloadOf(event)["action"])
	assert.Equal(t, "alice", payloadOf(event)["player"])
	assert.Len(t, buildingsOf(expect(t, watcher, MessageState)), 1)

	send(t, watcher, Command{Type: CommandAction, Action: "build_road", Seat: 0, Params: ActionParams{Edge: intp(firstEdge(t, 0))}})
	assert.Equal(t, "BUILD_ROAD", payloadOf(expect(t, owner, MessageEvent))["action"])
	state = expect(t, owner, MessageState)
	assert.Equal(t, float64(1), payloadOf(state)["current"])

	send(t, watcher, Command{Type: CommandLeave, RequestID: "bye"})
	assert.Equal(t, "bye", expect(t, watcher, MessageAck)["request_id"])
	send(t, watcher, Command{Type: CommandState})
	assert.Equal(t, "INVALID_ARGUMENT", payloadOf(expect(t, watcher, MessageError))["code"])

	send(t, owner, Command{Type: CommandState, RequestID: "s"})
	assert.Equal(t, "s", expect(t, owner, MessageState)["request_id"])
}

func TestHubRejectsBadCommands(t *testing.T) {
	srv := startHub(t, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "INVALID_ARGUMENT", payloadOf(expect(t, conn, MessageError))["code"])

	tests := []struct {
		name string
		cmd  Command
		code string
	}{
		{"unknown command", Command{Type: "dance"}, "INVALID_ARGUMENT"},
		{"state without game", Command{Type: CommandState}, "INVALID_ARGUMENT"},
		{"join unknown game", Command{Type: CommandJoin, GameID: "nope"}, "INVALID_ARGUMENT"},
		{"too few players", Command{Type: CommandCreate, Players: []string{"a", "b"}}, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.cmd)
			assert.Equal(t, tt.code, payloadOf(expect(t, conn, MessageError))["code"])
		})
	}

	createGame(t, conn, "g-bad")
	send(t, conn, Command{Type: CommandCreate, GameID: "g-bad", Players: testPlayers})
	assert.Equal(t, "INVALID_ARGUMENT", payloadOf(expect(t, conn, MessageError))["code"])

	send(t, conn, Command{Type: CommandAction, Action: "teleport", Seat: 0})
	assert.Equal(t, "INVALID_ARGUMENT", payloadOf(expect(t, conn, MessageError))["code"])

	send(t, conn, Command{Type: CommandAction, Action: "build_settlement", Seat: 0})
	assert.Equal(t, "INVALID_ARGUMENT", payloadOf(expect(t, conn, MessageError))["code"])

	send(t, conn, Command{Type: CommandSave})
	assert.Equal(t, "ILLEGAL_ACTION", payloadOf(expect(t, conn, MessageError))["code"])
}

func TestHubPersistsAndRestores(t *testing.T) {
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "catan.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	first := dial(t, startHub(t, store))
	createGame(t, first, "g-persist")
	settle(t, first, 0)
	expect(t, first, MessageState)

	send(t, first, Command{Type: CommandSave, RequestID: "save"})
	ack := expect(t, first, MessageAck)
	assert.Equal(t, "save", ack["request_id"])
	assert.Equal(t, true, payloadOf(ack)["saved"])

	second := dial(t, startHub(t, store))
	send(t, second, Command{Type: CommandJoin, GameID: "g-persist"})
	state := expect(t, second, MessageState)
	assert.Len(t, buildingsOf(state), 1)
	assert.Equal(t, "SETUP_FORWARD", payloadOf(state)["phase"])

	send(t, second, Command{Type: CommandAction, Action: "build_road", Seat: 0, Params: ActionParams{Edge: intp(firstEdge(t, 0))}})
	assert.Equal(t, "BUILD_ROAD", payloadOf(expect(t, second, MessageEvent))["action"])
	expect(t, second, MessageAck)

	snap, err := store.Load(context.Background(), "g-persist")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Seq)

	send(t, second, Command{Type: CommandList, RequestID: "list"})
	ack = expect(t, second, MessageAck)
	games := payloadOf(ack)["games"].([]any)
	require.Len(t, games, 1)
	assert.Equal(t, "g-persist", games[0].(map[string]any)["game_id"])
	assert.Equal(t, float64(2), games[0].(map[string]any)["seq"])
}

func TestHubCall(t *testing.T) {
	hub := NewHub(game.Config{}, config.WebSocketConfig{SendBuffer: 64}, nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	state, err := hub.Call(ctx, Command{Type: CommandCreate, GameID: "g-call", Players: testPlayers})
	require.NoError(t, err)
	assert.Equal(t, "SETUP_FORWARD", state["phase"])

	watcher := dial(t, srv)
	send(t, watcher, Command{Type: CommandJoin, GameID: "g-call"})
	expect(t, watcher, MessageState)

	payload, err := hub.Call(ctx, Command{Type: CommandAction, GameID: "g-call", Action: "BUILD_SETTLEMENT", Params: ActionParams{Vertex: intp(0)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), payload["seq"])
	assert.Equal(t, "BUILD_SETTLEMENT", payload["action"])
	require.Contains(t, payload, "state")
	assert.Equal(t, "BUILD_SETTLEMENT", payloadOf(expect(t, watcher, MessageEvent))["action"])

	_, err = hub.Call(ctx, Command{Type: CommandRedo, GameID: "g-call"})
	assert.True(t, errors.Is(err, gameerr.NothingToRedo))

	_, err = hub.Call(ctx, Command{Type: CommandState})
	assert.True(t, errors.Is(err, gameerr.InvalidArgument))

	_, err = hub.Call(ctx, Command{Type: CommandList})
	assert.True(t, errors.Is(err, gameerr.IllegalAction))

	cancel()
	<-done
	_, err = hub.Call(context.Background(), Command{Type: CommandState, GameID: "g-call"})
	assert.ErrorIs(t, err, ErrHubStopped)
}

// runHub runs a hub for the duration of the test.
func runHub(t *testing.T, store repository.Store, recorder *game.ReplayRecorder) (*Hub, context.Context) {
	t.Helper()
	hub := NewHub(game.Config{}, config.WebSocketConfig{SendBuffer: 64}, store, recorder, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub, ctx
}

func TestHubCreateRefusesStoredGameID(t *testing.T) {
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "catan.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	first, ctx := runHub(t, store, nil)
	_, err = first.Call(ctx, Command{Type: CommandCreate, GameID: "g", Players: testPlayers})
	require.NoError(t, err)
	_, err = first.Call(ctx, Command{Type: CommandAction, GameID: "g", Action: "BUILD_SETTLEMENT", Params: ActionParams{Vertex: intp(0)}})
	require.NoError(t, err)

	second, ctx := runHub(t, store, nil)
	_, err = second.Call(ctx, Command{Type: CommandCreate, GameID: "g", Players: testPlayers})
	assert.True(t, errors.Is(err, gameerr.InvalidArgument))

	snap, err := store.Load(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Seq, "the stored game is untouched")

	state, err := second.Call(ctx, Command{Type: CommandState, GameID: "g"})
	require.NoError(t, err)
	assert.Len(t, state["board"].(map[string]any)["buildings"], 1)

	_, err = second.Call(ctx, Command{Type: CommandCreate, GameID: "g-new", Players: testPlayers})
	require.NoError(t, err)
}

func TestHubReplay(t *testing.T) {
	dir := t.TempDir()
	hub, ctx := runHub(t, nil, game.NewReplayRecorder(zap.NewNop(), dir))

	_, err := hub.Call(ctx, Command{Type: CommandCreate, GameID: "g-replay", Players: testPlayers})
	require.NoError(t, err)
	_, err = hub.Call(ctx, Command{Type: CommandAction, GameID: "g-replay", Action: "BUILD_SETTLEMENT", Params: ActionParams{Vertex: intp(0)}})
	require.NoError(t, err)

	payload, err := hub.Call(ctx, Command{Type: CommandReplay, GameID: "g-replay", Frame: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, payload["frames"])
	assert.Equal(t, 1, payload["frame"])
	assert.Equal(t, int64(1), payload["seq"])
	state := payload["state"].(map[string]any)
	assert.Len(t, state["board"].(map[string]any)["buildings"], 1)
	assert.Equal(t, "g-replay", state["game_id"])

	payload, err = hub.Call(ctx, Command{Type: CommandReplay, GameID: "g-replay"})
	require.NoError(t, err)
	assert.Empty(t, payload["state"].(map[string]any)["board"].(map[string]any)["buildings"])

	_, err = hub.Call(ctx, Command{Type: CommandUndo, GameID: "g-replay"})
	require.NoError(t, err)
	payload, err = hub.Call(ctx, Command{Type: CommandReplay, GameID: "g-replay"})
	require.NoError(t, err)
	assert.Equal(t, 1, payload["frames"], "undone frames are cut")

	_, err = hub.Call(ctx, Command{Type: CommandReplay, GameID: "g-replay", Frame: 1})
	assert.True(t, errors.Is(err, gameerr.InvalidArgument))
	_, err = hub.Call(ctx, Command{Type: CommandReplay, GameID: "missing"})
	assert.True(t, errors.Is(err, gameerr.InvalidArgument))
	_, err = hub.Call(ctx, Command{Type: CommandReplay})
	assert.True(t, errors.Is(err, gameerr.InvalidArgument))
}

func TestHubReplayDisabled(t *testing.T) {
	hub, ctx := runHub(t, nil, nil)
	_, err := hub.Call(ctx, Command{Type: CommandReplay, GameID: "g"})
	assert.True(t, errors.Is(err, gameerr.IllegalAction))
}
