// Package game runs one Catan game: it validates commands against the turn
// state machine, applies them to the board and the ledger atomically, and
// keeps the undo/redo history and the structured event log.
package game

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/ledger"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
	"github.com/hexlog/catan-server-go/internal/game/trade"
)

// Player limits.
const (
	MinPlayers = 3
	MaxPlayers = 4
)

// DefaultVictoryTarget is the score that wins at the end of a turn.
const DefaultVictoryTarget = 10

// Config describes a new game.
type Config struct {
	GameID  string
	Players []string
	// Seed initialises the PCG generator used for the layout shuffle, the
	// development pile, dice and robbery.
	Seed    [2]uint64
	Shuffle bool
	// Layout overrides the standard or shuffled layout.
	Layout         *board.Layout
	VictoryTarget  int
	MinLongestRoad int
	MinLargestArmy int
	// MaxHistory bounds the undo stack; zero keeps everything.
	MaxHistory int
}

func (c Config) withDefaults() (Config, error) {
	if n := len(c.Players); n < MinPlayers || n > MaxPlayers {
		return c, gameerr.Invalid("a game needs %d to %d players, got %d", MinPlayers, MaxPlayers, n)
	}
	if c.GameID == "" {
		c.GameID = uuid.NewString()
	}
	if c.VictoryTarget <= 0 {
		c.VictoryTarget = DefaultVictoryTarget
	}
	if c.MinLongestRoad <= 0 {
		c.MinLongestRoad = rules.DefaultMinLongestRoad
	}
	if c.MinLargestArmy <= 0 {
		c.MinLargestArmy = rules.DefaultMinLargestArmy
	}
	if c.MaxHistory < 0 {
		return c, gameerr.Invalid("negative history depth %d", c.MaxHistory)
	}
	c.Players = append([]string(nil), c.Players...)
	return c, nil
}

// Sink receives every history event.
type Sink interface {
	Publish(event rules.Event)
}

// Session is a single game. All methods are safe for concurrent use; actions
// are serialised by the session mutex and queries return copies.
type Session struct {
	mu     sync.RWMutex
	cfg    Config
	logger *zap.Logger

	board       *board.Board
	ledger      *ledger.Ledger
	pcg         *rand.PCG
	rng         *rand.Rand
	negotiation *trade.Negotiation

	phase       rules.Phase
	order       rules.TurnOrder
	dice        [2]int
	setupStep   rules.SetupStep
	setupAnchor board.VertexID
	freeRoads   int
	discards    []int
	winner      int

	history  *History
	restored int
	seq      int64
	aborted  bool
	events   *rules.EventBus
	recorder *ReplayRecorder
}

// NewSession sets up the board, shuffles the development pile and starts
// the forward setup round with seat 0.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	pcg := rand.NewPCG(cfg.Seed[0], cfg.Seed[1])
	rng := rand.New(pcg)

	layout := board.StandardLayout()
	switch {
	case cfg.Layout != nil:
		layout = *cfg.Layout
	case cfg.Shuffle:
		layout = board.ShuffledLayout(rng)
	}
	b, err := board.New(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to build board: %w", err)
	}

	s := newSession(cfg, logger, b, ledger.New(len(cfg.Players), rng), pcg)
	if s.logger != nil {
		s.logger.Info("game created",
			zap.String("game_id", cfg.GameID),
			zap.Strings("players", cfg.Players),
			zap.Bool("shuffled", cfg.Shuffle),
		)
	}
	return s, nil
}

func newSession(cfg Config, logger *zap.Logger, b *board.Board, l *ledger.Ledger, pcg *rand.PCG) *Session {
	return &Session{
		cfg:         cfg,
		logger:      logger,
		board:       b,
		ledger:      l,
		pcg:         pcg,
		rng:         rand.New(pcg),
		negotiation: trade.NewNegotiation(nil),
		phase:       rules.PhaseSetupForward,
		order:       rules.NewTurnOrder(len(cfg.Players)),
		setupAnchor: -1,
		winner:      board.Nobody,
		history:     NewHistory(cfg.MaxHistory),
		events:      rules.NewEventBus(),
	}
}

// AddSink subscribes a sink to the event log and returns its handle.
func (s *Session) AddSink(sink Sink) int {
	return s.events.Subscribe(sink.Publish)
}

// RemoveSink unsubscribes a sink added with AddSink.
func (s *Session) RemoveSink(handle int) {
	s.events.Unsubscribe(handle)
}

// Events exposes the event bus for per-action subscriptions.
func (s *Session) Events() *rules.EventBus {
	return s.events
}

// SetRecorder attaches a replay recorder. The session records a frame now
// and after every applied, undone or redone action, and saves the replay
// each time the game reaches GameOver.
func (s *Session) SetRecorder(recorder *ReplayRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder != nil && s.recorder != recorder {
		s.recorder.Close(s.cfg.GameID)
	}
	s.recorder = recorder
	if recorder != nil {
		recorder.Record(s.snapshot())
	}
}

// Close detaches the replay recorder. The session stays usable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder != nil {
		s.recorder.Close(s.cfg.GameID)
		s.recorder = nil
	}
}

// bookmark is a full copy of the mutable state taken before an action.
type bookmark struct {
	occupancy board.Occupancy
	ledger    ledger.State
	frame     Frame
}

func (s *Session) bookmark() bookmark {
	return bookmark{
		occupancy: s.board.Occupancy(),
		ledger:    s.ledger.State(),
		frame:     s.frame(),
	}
}

func (s *Session) restore(m bookmark) error {
	if err := s.board.RestoreOccupancy(m.occupancy); err != nil {
		return err
	}
	l, err := ledger.FromState(m.ledger)
	if err != nil {
		return err
	}
	s.ledger = l
	return s.restoreFrame(m.frame)
}

func (s *Session) frame() Frame {
	f := Frame{
		Phase:       s.phase,
		Order:       s.order,
		Dice:        s.dice,
		Robber:      s.board.Robber(),
		SetupStep:   s.setupStep,
		SetupAnchor: s.setupAnchor,
		FreeRoads:   s.freeRoads,
		Winner:      s.winner,
		Marks:       s.ledger.Marks(),
	}
	if s.discards != nil {
		f.Discards = append([]int(nil), s.discards...)
	}
	if offer, ok := s.negotiation.Pending(); ok {
		f.Offer = &offer
	}
	// PCG.MarshalBinary never fails.
	f.RNG, _ = s.pcg.MarshalBinary()
	return f
}

func (s *Session) restoreFrame(f Frame) error {
	if err := s.pcg.UnmarshalBinary(f.RNG); err != nil {
		return fmt.Errorf("failed to restore rng: %w", err)
	}
	s.phase = f.Phase
	s.order = f.Order
	s.dice = f.Dice
	s.board.SetRobber(f.Robber)
	s.setupStep = f.SetupStep
	s.setupAnchor = f.SetupAnchor
	s.freeRoads = f.FreeRoads
	s.discards = nil
	if f.Discards != nil {
		s.discards = append([]int(nil), f.Discards...)
	}
	s.winner = f.Winner
	s.negotiation.Restore(f.Offer)
	marks := f.Marks
	marks.Seats = append([]ledger.Mark(nil), f.Marks.Seats...)
	s.ledger.RestoreMarks(marks)
	return nil
}

// Apply validates and executes one action. On any error the session is left
// exactly as it was. On success the action is appended to the history and
// published to the sinks.
func (s *Session) Apply(action Action) (rec *Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if action == nil {
		return nil, gameerr.Invalid("nil action")
	}
	if err := s.checkSeat(action.Actor()); err != nil {
		return nil, err
	}
	from := s.phase
	if err := rules.CheckAction(from, action.Kind()); err != nil {
		return nil, err
	}

	mark := s.bookmark()
	defer func() {
		if err == nil {
			return
		}
		if restoreErr := s.restore(mark); restoreErr != nil {
			s.aborted = true
			if s.logger != nil {
				s.logger.Error("failed to restore state after error",
					zap.String("game_id", s.cfg.GameID),
					zap.Error(err),
					zap.NamedError("restore_error", restoreErr),
				)
			}
			return
		}
		if s.logger != nil {
			s.logger.Debug("action rejected",
				zap.String("game_id", s.cfg.GameID),
				zap.String("action", string(action.Kind())),
				zap.Int("seat", action.Actor()),
				zap.Error(err),
			)
		}
	}()

	effect, err := s.dispatch(action)
	if err != nil {
		return nil, err
	}
	if err := rules.CheckLanding(from, action.Kind(), s.phase); err != nil {
		s.abort(action.Kind(), action.Actor(), err)
		return nil, err
	}
	if err := s.checkInvariants(); err != nil {
		s.abort(action.Kind(), action.Actor(), err)
		return nil, err
	}

	s.seq++
	rec = &Record{
		ID:      uuid.New(),
		Seq:     s.seq,
		Kind:    action.Kind(),
		Actor:   action.Actor(),
		Params:  action.params(),
		Summary: describe(effect),
		Pre:     mark.frame,
		Post:    s.frame(),
		Effect:  effect,
	}
	s.history.Push(rec)
	s.publish(rules.EventApplied, rec)
	s.recordReplay()

	if s.logger != nil {
		s.logger.Debug("action applied",
			zap.String("game_id", s.cfg.GameID),
			zap.Int64("seq", rec.Seq),
			zap.String("action", string(rec.Kind)),
			zap.Int("seat", rec.Actor),
			zap.String("phase", s.phase.String()),
		)
		if s.phase == rules.PhaseGameOver {
			s.logger.Info("game over",
				zap.String("game_id", s.cfg.GameID),
				zap.Int("winner", s.winner),
				zap.Int("turn", s.order.Turn),
			)
		}
	}
	return rec, nil
}

// Undo reverts the most recent applied action.
func (s *Session) Undo() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return nil, err
	}
	rec, ok := s.history.PopUndo()
	if !ok {
		return nil, gameerr.New(gameerr.CodeNothingToUndo, "nothing to undo")
	}
	mark := s.bookmark()
	err := s.revert(rec.Effect)
	if err == nil {
		err = s.restoreFrame(rec.Pre)
	}
	if err == nil {
		err = s.checkInvariants()
	}
	if err != nil {
		s.history.Reapply(rec)
		if restoreErr := s.restore(mark); restoreErr != nil {
			err = fmt.Errorf("%w (restore failed: %v)", err, restoreErr)
		}
		err = gameerr.Wrap(gameerr.CodeInvariantViolation, "undo failed", err)
		s.abort(rec.Kind, rec.Actor, err)
		return nil, err
	}
	s.seq = rec.Seq - 1
	s.history.PushRedo(rec)
	s.publish(rules.EventUndone, rec)
	s.recordReplay()
	return rec, nil
}

// Redo re-applies the most recently undone action.
func (s *Session) Redo() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return nil, err
	}
	rec, ok := s.history.PopRedo()
	if !ok {
		return nil, gameerr.New(gameerr.CodeNothingToRedo, "nothing to redo")
	}
	mark := s.bookmark()
	err := s.replay(rec.Effect)
	if err == nil {
		err = s.restoreFrame(rec.Post)
	}
	if err == nil {
		err = s.checkInvariants()
	}
	if err != nil {
		s.history.PushRedo(rec)
		if restoreErr := s.restore(mark); restoreErr != nil {
			err = fmt.Errorf("%w (restore failed: %v)", err, restoreErr)
		}
		err = gameerr.Wrap(gameerr.CodeInvariantViolation, "redo failed", err)
		s.abort(rec.Kind, rec.Actor, err)
		return nil, err
	}
	s.seq = rec.Seq
	s.history.Reapply(rec)
	s.publish(rules.EventRedone, rec)
	s.recordReplay()
	return rec, nil
}

// CanUndo reports whether Undo has something to revert.
func (s *Session) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.aborted && s.history.Depth() > 0
}

// CanRedo reports whether Redo has something to re-apply.
func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.aborted && s.history.RedoDepth() > 0
}

// HistoryDepth returns the number of undoable actions.
func (s *Session) HistoryDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Depth()
}

// RestoredDepth returns the undo depth recorded in the snapshot the session
// was restored from, zero for a new game. Those actions happened but can no
// longer be undone.
func (s *Session) RestoredDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restored
}

// Records returns the undoable history, oldest first.
func (s *Session) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Records()
}

func (s *Session) checkLive() error {
	if s.aborted {
		return gameerr.New(gameerr.CodeGameAborted, "game %s was aborted", s.cfg.GameID)
	}
	return nil
}

func (s *Session) checkSeat(seat int) error {
	if seat < 0 || seat >= len(s.cfg.Players) {
		return gameerr.Invalid("unknown seat %d", seat)
	}
	return nil
}

func (s *Session) abort(kind rules.ActionKind, actor int, cause error) {
	s.aborted = true
	if s.logger != nil {
		s.logger.Error("invariant violated, aborting game",
			zap.String("game_id", s.cfg.GameID),
			zap.String("action", string(kind)),
			zap.Int("seat", actor),
			zap.Error(cause),
		)
	}
	event := rules.NewEvent(rules.EventAborted, kind, actor, s.cfg.Players[actor])
	event.Seq = s.seq
	event.GameID = s.cfg.GameID
	event.Summary = cause.Error()
	s.events.Publish(event)
}

func (s *Session) publish(eventType rules.EventType, rec *Record) {
	event := rules.NewEvent(eventType, rec.Kind, rec.Actor, s.cfg.Players[rec.Actor])
	event.Seq = rec.Seq
	event.GameID = s.cfg.GameID
	event.Summary = rec.Summary
	for k, v := range rec.Params {
		event.Params[k] = v
	}
	s.events.Publish(event)
}

func (s *Session) recordReplay() {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(s.snapshot())
	if s.phase == rules.PhaseGameOver {
		if err := s.recorder.Save(s.cfg.GameID); err != nil && s.logger != nil {
			s.logger.Warn("failed to save replay",
				zap.String("game_id", s.cfg.GameID),
				zap.Error(err),
			)
		}
	}
}

// checkInvariants verifies scores, resource conservation and that the
// ledger's piece counts agree with the board.
func (s *Session) checkInvariants() error {
	for seat := range s.cfg.Players {
		if _, err := s.ledger.RecomputeVictoryPoints(seat); err != nil {
			return err
		}
		acct := s.ledger.Account(seat)
		if !acct.Hand.NonNegative() {
			return gameerr.New(gameerr.CodeInvariantViolation, "seat %d holds %v", seat, acct.Hand)
		}
		settlements, cities, roads := s.board.Count(seat)
		if settlements != acct.Settlements || cities != acct.Cities || roads != acct.Roads {
			return gameerr.New(gameerr.CodeInvariantViolation,
				"seat %d board shows %d/%d/%d settlements/cities/roads, ledger %d/%d/%d",
				seat, settlements, cities, roads, acct.Settlements, acct.Cities, acct.Roads)
		}
	}
	if !s.ledger.Bank().NonNegative() {
		return gameerr.New(gameerr.CodeInvariantViolation, "bank holds %v", s.ledger.Bank())
	}
	for _, r := range resource.All() {
		if total := s.ledger.Total(r); total != ledger.BankSupply {
			return gameerr.New(gameerr.CodeInvariantViolation,
				"%d %s in play, expected %d", total, r, ledger.BankSupply)
		}
	}
	return nil
}

// ID returns the game id.
func (s *Session) ID() string { return s.cfg.GameID }

// Players returns the seat names.
func (s *Session) Players() []string { return append([]string(nil), s.cfg.Players...) }

// Config returns a copy of the effective configuration.
func (s *Session) Config() Config {
	cfg := s.cfg
	cfg.Players = append([]string(nil), s.cfg.Players...)
	if s.cfg.Layout != nil {
		layout := s.board.Layout()
		cfg.Layout = &layout
	}
	return cfg
}

// Board returns a copy of the board as it stands now. Later actions do not
// show through it.
func (s *Session) Board() board.Reader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Clone()
}

// Account returns a copy of seat's holdings.
func (s *Session) Account(seat int) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkSeat(seat); err != nil {
		return ledger.Account{}, err
	}
	return s.ledger.Account(seat), nil
}

// Bank returns the bank's stock.
func (s *Session) Bank() resource.Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Bank()
}

// PileRemaining returns the number of undrawn development cards.
func (s *Session) PileRemaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.PileRemaining()
}

// Phase returns the current phase.
func (s *Session) Phase() rules.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// AllowedActions lists the action kinds the current phase accepts.
func (s *Session) AllowedActions() []rules.ActionKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aborted {
		return nil
	}
	return rules.AllowedActions(s.phase)
}

// Current returns the seat whose turn it is.
func (s *Session) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Current
}

// Turn returns the turn number; zero during setup.
func (s *Session) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Turn
}

// Dice returns this turn's roll, or zeros before the roll.
func (s *Session) Dice() [2]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dice
}

// Robber returns the robber's tile.
func (s *Session) Robber() board.TileID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Robber()
}

// LongestRoad returns the title holder or board.Nobody.
func (s *Session) LongestRoad() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.LongestRoad()
}

// LargestArmy returns the title holder or board.Nobody.
func (s *Session) LargestArmy() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.LargestArmy()
}

// Winner returns the winning seat or board.Nobody.
func (s *Session) Winner() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.winner
}

// PendingTrade returns the open offer, if any.
func (s *Session) PendingTrade() (trade.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.negotiation.Pending()
}

// PendingDiscards returns how many cards each seat still owes after a
// seven; nil outside the discard phase.
func (s *Session) PendingDiscards() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.discards == nil {
		return nil
	}
	return append([]int(nil), s.discards...)
}

// FreeRoads returns the roads left from a road building card.
func (s *Session) FreeRoads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freeRoads
}

// SetupStep returns the piece the current seat places next during setup.
func (s *Session) SetupStep() rules.SetupStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setupStep
}

// Aborted reports whether an invariant violation stopped the game.
func (s *Session) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}
