package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	debugLvl = "debug"
	infoLvl  = "info"
	warnLvl  = "warn"
	errorLvl = "error"
)

type Logger interface {
	Debug(msg string, msgArgs ...any)
	Info(msg string, msgArgs ...any)
	Warn(msg string, msgArgs ...any)
	Error(msg string, msgArgs ...any)
}

// ZLBasedLogger - 'Zerolog' based implementation of Logger interface.
type ZLBasedLogger struct {
	logger *zerolog.Logger
}

// NewLogger writes JSON lines to stderr, keeping stdout free for match records.
func NewLogger(lvl string) *ZLBasedLogger {
	return newLogger(os.Stderr, lvl)
}

// NewNopLogger discards everything.
func NewNopLogger() *ZLBasedLogger {
	logger := zerolog.Nop()
	return &ZLBasedLogger{logger: &logger}
}

func newLogger(out io.Writer, lvl string) *ZLBasedLogger {
	logger := zerolog.New(out).
		Level(parseLevel(lvl)).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &ZLBasedLogger{
		logger: &logger,
	}
}

func parseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(lvl) {
	case errorLvl:
		return zerolog.ErrorLevel
	case warnLvl:
		return zerolog.WarnLevel
	case infoLvl:
		return zerolog.InfoLevel
	case debugLvl:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *ZLBasedLogger) Debug(msg string, msgArgs ...any) {
	l.logger.Debug().Msgf(msg, msgArgs...)
}

func (l *ZLBasedLogger) Info(msg string, msgArgs ...any) {
	l.logger.Info().Msgf(msg, msgArgs...)
}

func (l *ZLBasedLogger) Warn(msg string, msgArgs ...any) {
	l.logger.Warn().Msgf(msg, msgArgs...)
}

func (l *ZLBasedLogger) Error(msg string, msgArgs ...any) {
	l.logger.Error().Msgf(msg, msgArgs...)
}
