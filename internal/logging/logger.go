package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger wraps zap.Logger to provide a consistent interface
type Logger struct {
	zap   *zap.Logger
	level LogLevel
}

// NewLogger creates a new Zap-based logger writing JSON to stderr
func NewLogger(level LogLevel, component string) *Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(logLevelToZap(level))
	config.Development = false
	config.Encoding = "json"
	// stdout carries command output (scan report lines), so logs stay on stderr
	config.OutputPaths = []string{"stderr"}

	config.InitialFields = map[string]interface{}{
		"component": component,
		"service":   "glmr",
	}

	zapLogger, err := config.Build()
	if err != nil {
		zapLogger, _ = zap.NewDevelopment()
	}

	return &Logger{
		zap:   zapLogger,
		level: level,
	}
}

// FromZap wraps an existing zap logger, mainly for tests using zaptest/observer
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z, level: DEBUG}
}

// GetLogLevel parses a log level string
func GetLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// logLevelToZap converts our LogLevel to zap level
func logLevelToZap(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap exposes the underlying zap logger
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Debug logs debug messages
func (l *Logger) Debug(message string, args ...interface{}) {
	if len(args) == 0 {
		l.zap.Debug(message)
	} else {
		l.zap.Sugar().Debugf(message, args...)
	}
}

// Info logs info messages
func (l *Logger) Info(message string, args ...interface{}) {
	if len(args) == 0 {
		l.zap.Info(message)
	} else {
		l.zap.Sugar().Infof(message, args...)
	}
}

// Warn logs warning messages
func (l *Logger) Warn(message string, args ...interface{}) {
	if len(args) == 0 {
		l.zap.Warn(message)
	} else {
		l.zap.Sugar().Warnf(message, args...)
	}
}

// Error logs error messages
func (l *Logger) Error(message string, args ...interface{}) {
	if len(args) == 0 {
		l.zap.Error(message)
	} else {
		l.zap.Sugar().Errorf(message, args...)
	}
}

// Project-scoped helpers, used by the scanner's per-project goroutines
func (l *Logger) ProjectInfo(projectID int, message string, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.Int("project_id", projectID)}, fields...)
	l.zap.Info(message, allFields...)
}

func (l *Logger) ProjectError(projectID int, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Int("project_id", projectID),
		zap.Error(err),
	}, fields...)
	l.zap.Error(message, allFields...)
}

func (l *Logger) ProjectWarn(projectID int, message string, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.Int("project_id", projectID)}, fields...)
	l.zap.Warn(message, allFields...)
}

// MR-specific logging helpers for better traceability
func (l *Logger) MRInfo(projectID, mrIID int, message string, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.Int("project_id", projectID), zap.Int("mr_iid", mrIID)}, fields...)
	l.zap.Info(message, allFields...)
}

func (l *Logger) MRError(projectID, mrIID int, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Int("project_id", projectID),
		zap.Int("mr_iid", mrIID),
		zap.Error(err),
	}, fields...)
	l.zap.Error(message, allFields...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.zap.Sync()
}

// Global logger instance
var defaultLogger *Logger

// InitLogger initializes the global logger
func InitLogger(level string, component string) {
	logLevel := GetLogLevel(level)
	defaultLogger = NewLogger(logLevel, component)
}

// SetLogger replaces the global logger
func SetLogger(l *Logger) {
	defaultLogger = l
}

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	return defaultLogger
}

func Debug(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(message, args...)
	}
}

func Info(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(message, args...)
	}
}

func Warn(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(message, args...)
	}
}

func Error(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(message, args...)
	}
}

// Structured variants taking zap fields
func InfoFields(message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.zap.Info(message, fields...)
	}
}

func WarnFields(message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.zap.Warn(message, fields...)
	}
}

func ErrorFields(message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.zap.Error(message, fields...)
	}
}

func ProjectInfo(projectID int, message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.ProjectInfo(projectID, message, fields...)
	}
}

func ProjectError(projectID int, message string, err error, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.ProjectError(projectID, message, err, fields...)
	}
}

func ProjectWarn(projectID int, message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.ProjectWarn(projectID, message, fields...)
	}
}

func MRInfo(projectID, mrIID int, message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.MRInfo(projectID, mrIID, message, fields...)
	}
}

func MRError(projectID, mrIID int, message string, err error, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.MRError(projectID, mrIID, message, err, fields...)
	}
}

func init() {
	if defaultLogger == nil {
		level := os.Getenv("LOG_LEVEL")
		if level == "" {
			level = "info"
		}
		InitLogger(level, "glmr")
	}
}
