// Package main is the entry point for the mfgate readiness coordinator.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mfstack/mfgate/cmd/mfgate/app"
	"github.com/mfstack/mfgate/internal/config"
)

// getLogLevel reads MFGATE_LOG_LEVEL, then LOG_LEVEL. Unset or unparsable
// values mean info.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	raw := v.GetString("LOG_LEVEL")
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	if raw == "" {
		return slog.LevelInfo
	}
	if strings.EqualFold(raw, "warning") {
		raw = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		slog.Warn("Ignoring invalid log level", "value", raw)
		return slog.LevelInfo
	}
	return level
}

// traceHandler adds trace_id and span_id of the active span to every record
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	// stderr keeps stdout clean for wait, envs and version --format json
	handler := &traceHandler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()}),
	}
	slog.SetDefault(slog.New(handler))

	// Exporter errors inside the OTel SDK go through the same handler
	otel.SetLogger(logr.FromSlogHandler(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
