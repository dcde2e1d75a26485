package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ZerologAdapter implements [Logger] on top of a zerolog.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

var _ Logger = (*ZerologAdapter)(nil)

// New returns a logger writing JSON lines to w at the given minimum level.
// When w is an *os.File attached to a terminal, human readable console
// output is used instead.
func New(w io.Writer, level zerolog.Level) *ZerologAdapter {
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()

	return &ZerologAdapter{logger: logger}
}

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *ZerologAdapter {
	return &ZerologAdapter{logger: zerolog.Nop()}
}

// ParseLevel converts a level name such as "debug" or "warn" to a zerolog
// level. An empty string yields info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(s)
}

//nolint:ireturn // Must return interface to implement Logger
func (z *ZerologAdapter) WithField(key string, value any) Logger {
	return &ZerologAdapter{logger: z.logger.With().Interface(key, value).Logger()}
}

//nolint:ireturn // Must return interface to implement Logger
func (z *ZerologAdapter) WithFields(fields map[string]any) Logger {
	return &ZerologAdapter{logger: z.logger.With().Fields(fields).Logger()}
}

func (z *ZerologAdapter) Debug(msg string) { z.logger.Debug().Msg(msg) }

func (z *ZerologAdapter) Debugf(format string, args ...any) { z.logger.Debug().Msgf(format, args...) }

func (z *ZerologAdapter) Info(msg string) { z.logger.Info().Msg(msg) }

func (z *ZerologAdapter) Infof(format string, args ...any) { z.logger.Info().Msgf(format, args...) }

func (z *ZerologAdapter) Warn(msg string) { z.logger.Warn().Msg(msg) }

func (z *ZerologAdapter) Warnf(format string, args ...any) { z.logger.Warn().Msgf(format, args...) }

func (z *ZerologAdapter) Error(msg string) { z.logger.Error().Msg(msg) }

func (z *ZerologAdapter) Errorf(format string, args ...any) { z.logger.Error().Msgf(format, args...) }

// Zerolog returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Zerolog() zerolog.Logger {
	return z.logger
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
