// Package logging defines the structured logger accepted by every plugin in
// this module, together with a zerolog-backed implementation.
//
// Plugins never construct loggers themselves. The caller builds one at
// startup (usually with [New]) and passes it to the plugin constructors,
// which enrich it with their own fields:
//
//	logger := logging.New(os.Stderr, zerolog.InfoLevel)
//	client := sqs.New(&awsCfg, "orders", logger)
package logging

// Logger is a leveled, structured logger. WithField and WithFields return a
// derived logger; the receiver is never modified.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
}
