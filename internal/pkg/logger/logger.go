// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的结构化日志实例，由 Init 初始化。
var Logger zerolog.Logger

func init() {
	// 在 Init 被调用之前提供一个可用的默认 logger，避免空指针
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 初始化全局日志器，所有日志都会携带 service 字段。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339
	Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个绑定了链路追踪信息的 logger。
// 如果 ctx 中存在有效的 Span，日志会自动携带 trace_id/span_id，
// 方便在 Jaeger 和日志系统之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}
