package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlog wraps a zerolog logger in a *slog.Logger so that packages built
// against log/slog write into the same stream. Groups are flattened; levels
// map onto the four zerolog levels the service emits.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{sink: zl})
}

type slogBridge struct {
	sink   *zerolog.Logger
	fields []slog.Attr
}

func (b *slogBridge) Enabled(context.Context, slog.Level) bool { return true }

func (b *slogBridge) Handle(ctx context.Context, rec slog.Record) error {
	ev := b.event(ctx, rec.Level)
	for _, a := range b.fields {
		ev = appendField(ev, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		ev = appendField(ev, a)
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (b *slogBridge) event(ctx context.Context, lvl slog.Level) *zerolog.Event {
	log := FromContext(ctx, b.sink)
	switch {
	case lvl >= slog.LevelError:
		return log.Error()
	case lvl >= slog.LevelWarn:
		return log.Warn()
	case lvl >= slog.LevelInfo:
		return log.Info()
	default:
		return log.Debug()
	}
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.fields)+len(attrs))
	merged = append(merged, b.fields...)
	merged = append(merged, attrs...)
	return &slogBridge{sink: b.sink, fields: merged}
}

func (b *slogBridge) WithGroup(string) slog.Handler { return b }

func appendField(ev *zerolog.Event, a slog.Attr) *zerolog.Event {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return ev.Str(a.Key, v.String())
	case slog.KindInt64:
		return ev.Int64(a.Key, v.Int64())
	case slog.KindUint64:
		return ev.Uint64(a.Key, v.Uint64())
	case slog.KindFloat64:
		return ev.Float64(a.Key, v.Float64())
	case slog.KindBool:
		return ev.Bool(a.Key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(a.Key, v.Duration())
	case slog.KindTime:
		return ev.Time(a.Key, v.Time())
	default:
		return ev.Interface(a.Key, v.Any())
	}
}
