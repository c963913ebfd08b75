package spectate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/game"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/rules"
	"github.com/hexlog/catan-server-go/internal/repository"
)

const (
	storeTimeout     = 5 * time.Second
	defaultListLimit = 50
)

// ErrHubStopped is returned by Call once Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// table is a live game and the clients watching it.
type table struct {
	session  *game.Session
	watchers map[*Client]struct{}
}

type inbound struct {
	client *Client
	cmd    Command
	err    error
}

type callResult struct {
	payload map[string]any
	err     error
}

type call struct {
	ctx   context.Context
	cmd   Command
	reply chan callResult
}

// Hub owns every live game. All game access happens on the Run goroutine,
// so sessions, tables and clients need no further locking.
type Hub struct {
	defaults game.Config
	store    repository.Store
	recorder *game.ReplayRecorder
	ws       config.WebSocketConfig
	logger   *zap.Logger

	tables  map[string]*table
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	calls      chan call
	done       chan struct{}
}

// NewHub creates a hub. store and recorder are optional.
func NewHub(defaults game.Config, ws config.WebSocketConfig, store repository.Store, recorder *game.ReplayRecorder, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		defaults:   defaults,
		store:      store,
		recorder:   recorder,
		ws:         ws,
		logger:     logger,
		tables:     make(map[string]*table),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		calls:      make(chan call),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and commands until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("spectate hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			for _, t := range h.tables {
				t.session.Close()
			}
			h.logger.Info("spectate hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("client registered", zap.String("client_id", client.id))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("client unregistered", zap.String("client_id", client.id))
			}

		case msg := <-h.inbound:
			if _, ok := h.clients[msg.client]; !ok {
				continue
			}
			if msg.err != nil {
				h.reply(msg.client, MessageError, "", "", errorFields(msg.err))
				continue
			}
			h.handle(ctx, msg.client, msg.cmd)

		case c := <-h.calls:
			payload, err := h.exec(c.ctx, c.cmd)
			c.reply <- callResult{payload: payload, err: err}
		}
	}
}

// Call runs a command on the hub goroutine without a connection and returns
// its reply payload. Watchers of the game still receive the resulting
// events and state.
func (h *Hub) Call(ctx context.Context, cmd Command) (map[string]any, error) {
	c := call{ctx: ctx, cmd: cmd, reply: make(chan callResult, 1)}
	select {
	case h.calls <- c:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-c.reply:
		return res.payload, res.err
	case <-h.done:
		return nil, ErrHubStopped
	}
}

// exec is the connection-independent part of every command.
func (h *Hub) exec(ctx context.Context, cmd Command) (map[string]any, error) {
	switch cmd.Type {
	case CommandCreate:
		t, err := h.create(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return stateFields(t.session), nil
	case CommandJoin, CommandState:
		t, err := h.lookup(ctx, cmd.GameID)
		if err != nil {
			return nil, err
		}
		return stateFields(t.session), nil
	case CommandAction, CommandUndo, CommandRedo:
		t, err := h.lookup(ctx, cmd.GameID)
		if err != nil {
			return nil, err
		}
		rec, err := h.mutate(ctx, t, cmd)
		if err != nil {
			return nil, err
		}
		payload := recordFields(rec)
		payload["state"] = stateFields(t.session)
		return payload, nil
	case CommandSave:
		t, err := h.lookup(ctx, cmd.GameID)
		if err != nil {
			return nil, err
		}
		if err := h.save(ctx, t); err != nil {
			return nil, err
		}
		return map[string]any{"saved": true}, nil
	case CommandList:
		return h.list(ctx)
	case CommandReplay:
		return h.replay(cmd)
	default:
		return nil, gameerr.Invalid("unknown command %q", cmd.Type)
	}
}

func (h *Hub) drop(client *Client) {
	h.leave(client)
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) handle(ctx context.Context, client *Client, cmd Command) {
	err := h.handleClient(ctx, client, cmd)
	if err != nil {
		h.logger.Debug("command rejected",
			zap.String("client_id", client.id),
			zap.String("command", cmd.Type),
			zap.Error(err),
		)
		h.reply(client, MessageError, cmd.GameID, cmd.RequestID, errorFields(err))
	}
}

func (h *Hub) handleClient(ctx context.Context, client *Client, cmd Command) error {
	switch cmd.Type {
	case CommandCreate:
		t, err := h.create(ctx, cmd)
		if err != nil {
			return err
		}
		h.watch(client, t)
		h.reply(client, MessageAck, t.session.ID(), cmd.RequestID, map[string]any{"created": true})
		h.sendState(client, t, "")

	case CommandJoin:
		t, err := h.lookup(ctx, cmd.GameID)
		if err != nil {
			return err
		}
		h.watch(client, t)
		h.sendState(client, t, cmd.RequestID)

	case CommandLeave:
		h.leave(client)
		h.reply(client, MessageAck, cmd.GameID, cmd.RequestID, nil)

	case CommandState:
		t, err := h.tableFor(ctx, client, cmd)
		if err != nil {
			return err
		}
		h.sendState(client, t, cmd.RequestID)

	case CommandAction, CommandUndo, CommandRedo:
		t, err := h.tableFor(ctx, client, cmd)
		if err != nil {
			return err
		}
		rec, err := h.mutate(ctx, t, cmd)
		if err != nil {
			return err
		}
		h.reply(client, MessageAck, t.session.ID(), cmd.RequestID, recordFields(rec))

	case CommandSave:
		t, err := h.tableFor(ctx, client, cmd)
		if err != nil {
			return err
		}
		if err := h.save(ctx, t); err != nil {
			return err
		}
		h.reply(client, MessageAck, t.session.ID(), cmd.RequestID, map[string]any{"saved": true})

	case CommandList:
		payload, err := h.list(ctx)
		if err != nil {
			return err
		}
		h.reply(client, MessageAck, "", cmd.RequestID, payload)

	case CommandReplay:
		payload, err := h.replay(cmd)
		if err != nil {
			return err
		}
		h.reply(client, MessageAck, cmd.GameID, cmd.RequestID, payload)

	default:
		return gameerr.Invalid("unknown command %q", cmd.Type)
	}
	return nil
}

func (h *Hub) create(ctx context.Context, cmd Command) (*table, error) {
	if cmd.GameID != "" {
		if _, exists := h.tables[cmd.GameID]; exists {
			return nil, gameerr.Invalid("game %s already exists", cmd.GameID)
		}
		if err := h.checkStored(ctx, cmd.GameID); err != nil {
			return nil, err
		}
	}
	cfg := h.defaults
	cfg.GameID = cmd.GameID
	cfg.Players = cmd.Players
	if len(cmd.Seed) == 2 {
		cfg.Seed = [2]uint64{cmd.Seed[0], cmd.Seed[1]}
	}
	session, err := game.NewSession(cfg, h.logger)
	if err != nil {
		return nil, err
	}
	t := h.open(session)
	h.persist(ctx, session)
	return t, nil
}

// checkStored refuses a game id that the store already holds, so a new
// game cannot replace a saved one.
func (h *Hub) checkStored(ctx context.Context, gameID string) error {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	_, err := h.store.Load(ctx, gameID)
	switch {
	case err == nil:
		return gameerr.Invalid("game %s already exists", gameID)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check game %s: %w", gameID, err)
	}
}

// replay returns one frame of a game's replay as a restored state.
func (h *Hub) replay(cmd Command) (map[string]any, error) {
	if h.recorder == nil {
		return nil, gameerr.Illegal("replay recording disabled")
	}
	if cmd.GameID == "" {
		return nil, gameerr.Invalid("missing game_id")
	}
	r, err := h.recorder.Replay(cmd.GameID)
	if errors.Is(err, game.ErrNoReplay) {
		return nil, gameerr.Invalid("no replay for game %q", cmd.GameID)
	}
	if err != nil {
		return nil, err
	}
	snap, ok := r.Frame(cmd.Frame)
	if !ok {
		return nil, gameerr.Invalid("frame %d out of range, replay has %d frames", cmd.Frame, r.Len())
	}
	session, err := game.RestoreSession(snap, h.logger)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"frames": r.Len(),
		"frame":  cmd.Frame,
		"seq":    snap.Seq,
		"state":  stateFields(session),
	}, nil
}

// lookup returns a live game, restoring it from the store if needed.
func (h *Hub) lookup(ctx context.Context, gameID string) (*table, error) {
	if gameID == "" {
		return nil, gameerr.Invalid("missing game_id")
	}
	if t, ok := h.tables[gameID]; ok {
		return t, nil
	}
	session, err := h.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return h.open(session), nil
}

func (h *Hub) load(ctx context.Context, gameID string) (*game.Session, error) {
	if h.store == nil {
		return nil, gameerr.Invalid("unknown game %q", gameID)
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	snap, err := h.store.Load(ctx, gameID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, gameerr.Invalid("unknown game %q", gameID)
	}
	if err != nil {
		return nil, err
	}
	session, err := game.RestoreSession(snap, h.logger)
	if err != nil {
		return nil, err
	}
	h.logger.Info("game restored from store",
		zap.String("game_id", gameID),
		zap.Int64("seq", snap.Seq),
	)
	return session, nil
}

// open registers a session and wires its event stream to the watchers.
func (h *Hub) open(session *game.Session) *table {
	t := &table{session: session, watchers: make(map[*Client]struct{})}
	h.tables[session.ID()] = t
	session.AddSink(game.NewZapSink(h.logger))
	session.AddSink(&tableSink{hub: h, gameID: session.ID()})
	if h.recorder != nil {
		session.SetRecorder(h.recorder)
	}
	return t
}

func (h *Hub) watch(client *Client, t *table) {
	if client.gameID == t.session.ID() {
		return
	}
	h.leave(client)
	t.watchers[client] = struct{}{}
	client.gameID = t.session.ID()
}

func (h *Hub) leave(client *Client) {
	if client.gameID == "" {
		return
	}
	if t, ok := h.tables[client.gameID]; ok {
		delete(t.watchers, client)
	}
	client.gameID = ""
}

// tableFor resolves the game a client command addresses: the explicit
// game_id, else the game the client watches.
func (h *Hub) tableFor(ctx context.Context, client *Client, cmd Command) (*table, error) {
	gameID := cmd.GameID
	if gameID == "" {
		gameID = client.gameID
	}
	if gameID == "" {
		return nil, gameerr.Invalid("not watching a game")
	}
	return h.lookup(ctx, gameID)
}

func (h *Hub) mutate(ctx context.Context, t *table, cmd Command) (*game.Record, error) {
	var (
		rec *game.Record
		err error
	)
	switch cmd.Type {
	case CommandUndo:
		rec, err = t.session.Undo()
	case CommandRedo:
		rec, err = t.session.Redo()
	default:
		var kind rules.ActionKind
		if kind, err = rules.ParseActionKind(cmd.Action); err != nil {
			return nil, gameerr.Invalid("%v", err)
		}
		var action game.Action
		if action, err = DecodeAction(kind, cmd.Seat, cmd.Params); err != nil {
			return nil, err
		}
		rec, err = t.session.Apply(action)
	}
	if err != nil {
		if !gameerr.Recoverable(err) {
			h.broadcastState(t)
		}
		return nil, err
	}
	h.broadcastState(t)
	h.persist(ctx, t.session)
	return rec, nil
}

func (h *Hub) save(ctx context.Context, t *table) error {
	if h.store == nil {
		return gameerr.Illegal("no snapshot store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return h.store.Save(ctx, t.session.Snapshot())
}

func (h *Hub) list(ctx context.Context) (map[string]any, error) {
	if h.store == nil {
		return nil, gameerr.Illegal("no snapshot store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	summaries, err := h.store.List(ctx, defaultListLimit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"games": summaryFields(summaries)}, nil
}

func (h *Hub) persist(ctx context.Context, session *game.Session) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := h.store.Save(ctx, session.Snapshot()); err != nil {
		h.logger.Warn("failed to persist game",
			zap.String("game_id", session.ID()),
			zap.Error(err),
		)
	}
}

func (h *Hub) sendState(client *Client, t *table, requestID string) {
	h.reply(client, MessageState, t.session.ID(), requestID, stateFields(t.session))
}

func (h *Hub) broadcastState(t *table) {
	msg, err := envelope(MessageState, t.session.ID(), "", stateFields(t.session))
	if err != nil {
		h.logger.Error("failed to encode state", zap.Error(err))
		return
	}
	h.broadcast(t.session.ID(), msg)
}

func (h *Hub) broadcast(gameID string, msg []byte) {
	t, ok := h.tables[gameID]
	if !ok {
		return
	}
	for client := range t.watchers {
		h.enqueue(client, msg)
	}
}

func (h *Hub) reply(client *Client, msgType, gameID, requestID string, payload map[string]any) {
	msg, err := envelope(msgType, gameID, requestID, payload)
	if err != nil {
		h.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	h.enqueue(client, msg)
}

// enqueue never blocks the hub; a client that cannot keep up is dropped.
func (h *Hub) enqueue(client *Client, msg []byte) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
		h.logger.Warn("client send buffer full, dropping", zap.String("client_id", client.id))
		h.drop(client)
	}
}

// tableSink forwards session events to the table's watchers. It runs inside
// Session.Apply on the hub goroutine and must not query the session.
type tableSink struct {
	hub    *Hub
	gameID string
}

func (ts *tableSink) Publish(event rules.Event) {
	msg, err := envelope(MessageEvent, ts.gameID, "", eventFields(event))
	if err != nil {
		ts.hub.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	ts.hub.broadcast(ts.gameID, msg)
}
