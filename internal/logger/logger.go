package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"picoyplaca/internal/config"
	"picoyplaca/pkg/logging"
)

// Logger is the structured logger handed to every component. The *Ctx
// variants add request id, trace id and service name from ctx.
type Logger interface {
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalf(template string, args ...interface{})
	Sync() error

	DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})

	// With returns a child logger that always carries keysAndValues.
	With(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	sugar   *zap.SugaredLogger
	service string
}

// New builds a zap logger from cfg. Unknown levels fall back to info and
// any format other than console is JSON.
func New(cfg config.LoggingConfig, serviceName string) (Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		zc.EncoderConfig.MessageKey = "message"
		zc.EncoderConfig.TimeKey = "timestamp"
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	base, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &zapLogger{sugar: base.Sugar(), service: serviceName}, nil
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func (l *zapLogger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *zapLogger) Debugw(msg string, kv ...interface{})        { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Info(args ...interface{})                    { l.sugar.Info(args...) }
func (l *zapLogger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})         { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})         { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Error(args ...interface{})                   { l.sugar.Error(args...) }
func (l *zapLogger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{})        { l.sugar.Errorw(msg, kv...) }
func (l *zapLogger) Fatalf(template string, args ...interface{}) { l.sugar.Fatalf(template, args...) }
func (l *zapLogger) Sync() error                                 { return l.sugar.Sync() }

func (l *zapLogger) DebugwCtx(ctx context.Context, msg string, kv ...interface{}) {
	l.sugar.Debugw(msg, l.withContext(ctx, kv)...)
}

func (l *zapLogger) InfowCtx(ctx context.Context, msg string, kv ...interface{}) {
	l.sugar.Infow(msg, l.withContext(ctx, kv)...)
}

func (l *zapLogger) WarnwCtx(ctx context.Context, msg string, kv ...interface{}) {
	l.sugar.Warnw(msg, l.withContext(ctx, kv)...)
}

func (l *zapLogger) ErrorwCtx(ctx context.Context, msg string, kv ...interface{}) {
	l.sugar.Errorw(msg, l.withContext(ctx, kv)...)
}

func (l *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...), service: l.service}
}

func (l *zapLogger) withContext(ctx context.Context, kv []interface{}) []interface{} {
	fields := logging.GetLogFields(ctx)
	if l.service != "" && logging.GetServiceName(ctx) == "" {
		fields = append(fields, string(logging.ServiceNameKey), l.service)
	}
	return append(fields, kv...)
}

// NopLogger discards everything. Tests use it.
func NopLogger() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

// NewWithCore wraps an existing zap core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core, serviceName string) Logger {
	return &zapLogger{sugar: zap.New(core).Sugar(), service: serviceName}
}
