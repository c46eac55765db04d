package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"toutuo/server/logging"
)

// Zap forwards events to a zap logger with one typed field per event attribute.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps an existing logger. A nil logger discards everything.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

// NewZapLogger builds the logger used by the server binary.
func NewZapLogger(cfg logging.ZapConfig, minimum logging.Severity) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableStacktrace = true
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.DisableCaller = true
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel(minimum))
	return zapCfg.Build()
}

func zapLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (s *Zap) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 8+len(event.Extra))
	fields = append(fields,
		zap.Uint64("tick", event.Tick),
		zap.String("actor", formatEntity(event.Actor)),
	)
	if event.Category != "" {
		fields = append(fields, zap.String("category", event.Category))
	}
	if len(event.Targets) > 0 {
		fields = append(fields, zap.String("targets", formatTargets(event.Targets)[len(" targets="):]))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("trace", event.TraceID))
	}
	if event.CommandID != "" {
		fields = append(fields, zap.String("command", event.CommandID))
	}
	for k, v := range event.Extra {
		fields = append(fields, zap.Any(k, v))
	}
	if ce := s.logger.Check(zapLevel(event.Severity), string(event.Type)); ce != nil {
		ce.Time = event.Time
		ce.Write(fields...)
	}
	return nil
}

// Close syncs buffered output. Sync errors on terminals are ignored.
func (s *Zap) Close(context.Context) error {
	if s == nil || s.logger == nil {
		return nil
	}
	_ = s.logger.Sync()
	return nil
}
