package game

import (
	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/game/rules"
)

// ZapSink writes every event to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink logging at info level.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Publish logs the event.
func (z *ZapSink) Publish(event rules.Event) {
	if z.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("game_id", event.GameID),
		zap.Int64("seq", event.Seq),
		zap.String("type", string(event.Type)),
		zap.String("action", string(event.Action)),
		zap.Int("seat", event.Actor),
		zap.String("player", event.Player),
		zap.Any("params", event.Params),
	}
	if event.Type == rules.EventAborted {
		z.logger.Error(event.Summary, fields...)
		return
	}
	z.logger.Info(event.Summary, fields...)
}

// MemorySink keeps events in memory.
type MemorySink struct {
	Events []rules.Event
}

// Publish appends the event.
func (m *MemorySink) Publish(event rules.Event) {
	m.Events = append(m.Events, event)
}
