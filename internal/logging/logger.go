package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardLogger wraps a zap logger with the field conventions used across
// the service.
type StandardLogger struct {
	logger *zap.Logger
}

// NewStandardLogger builds a logger for the given level and environment.
// Production emits JSON; every other environment uses the console encoder.
func NewStandardLogger(level, environment string) *StandardLogger {
	atomicLevel := zap.NewAtomicLevelAt(getZapLevel(level))

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if strings.EqualFold(environment, "production") {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "time"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomicLevel)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("environment", environment))

	return &StandardLogger{logger: logger}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *StandardLogger {
	return &StandardLogger{logger: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(logger *zap.Logger) *StandardLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandardLogger{logger: logger}
}

func getZapLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger exposes the underlying zap logger.
func (l *StandardLogger) Logger() *zap.Logger {
	return l.logger
}

// Sync flushes buffered entries.
func (l *StandardLogger) Sync() error {
	return l.logger.Sync()
}

func (l *StandardLogger) with(fields ...zap.Field) *StandardLogger {
	return &StandardLogger{logger: l.logger.With(fields...)}
}

func (l *StandardLogger) WithService(service string) *StandardLogger {
	return l.with(zap.String("service", service))
}

func (l *StandardLogger) WithComponent(component string) *StandardLogger {
	return l.with(zap.String("component", component))
}

func (l *StandardLogger) WithOperation(operation string) *StandardLogger {
	return l.with(zap.String("operation", operation))
}

func (l *StandardLogger) WithRequestID(requestID string) *StandardLogger {
	return l.with(zap.String("request_id", requestID))
}

func (l *StandardLogger) WithUserID(userID string) *StandardLogger {
	return l.with(zap.String("user_id", userID))
}

func (l *StandardLogger) WithError(err error) *StandardLogger {
	return l.with(zap.Error(err))
}

func (l *StandardLogger) WithFields(fields map[string]interface{}) *StandardLogger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return l.with(zapFields...)
}

func (l *StandardLogger) Debug(msg string, fields ...zap.Field) { l.logger.Debug(msg, fields...) }
func (l *StandardLogger) Info(msg string, fields ...zap.Field)  { l.logger.Info(msg, fields...) }
func (l *StandardLogger) Warn(msg string, fields ...zap.Field)  { l.logger.Warn(msg, fields...) }
func (l *StandardLogger) Error(msg string, fields ...zap.Field) { l.logger.Error(msg, fields...) }

// LogStartup records a service start event.
func (l *StandardLogger) LogStartup(service, version string, port int) {
	l.logger.Info("Service starting",
		zap.String("event", "startup"),
		zap.String("service", service),
		zap.String("version", version),
		zap.Int("port", port),
	)
}

// LogShutdown records a service stop event.
func (l *StandardLogger) LogShutdown(service, reason string) {
	l.logger.Info("Service shutting down",
		zap.String("event", "shutdown"),
		zap.String("service", service),
		zap.String("reason", reason),
	)
}

// LogAPIRequest records a completed HTTP request.
func (l *StandardLogger) LogAPIRequest(method, path string, statusCode int, durationMs int64, userID string) {
	l.logger.Info("API request",
		zap.String("event", "api_request"),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
		zap.String("user_id", userID),
	)
}

// LogAuthEvent records the outcome of a login attempt. Credentials never
// appear in the fields.
func (l *StandardLogger) LogAuthEvent(transport, outcome, userID string) {
	l.logger.Info("Auth event",
		zap.String("event", "auth"),
		zap.String("transport", transport),
		zap.String("outcome", outcome),
		zap.String("user_id", userID),
	)
}
