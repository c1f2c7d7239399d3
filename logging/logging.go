// Package logging provides the log sink injected into the cores. The cores
// only see the Logger interface; the process wires a zerolog-backed
// implementation, tests usually pass Discard.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the sink the endpoint and daemon components write to.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type zerologLogger struct {
	log zerolog.Logger
}

// New creates a zerolog-backed Logger writing to w at the given level.
// Unknown level strings fall back to info.
func New(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &zerologLogger{
		log: zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
	}
}

// NewConsole creates a Logger with human-readable output on stderr.
func NewConsole(level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	return &zerologLogger{
		log: zerolog.New(out).Level(lvl).With().Timestamp().Logger(),
	}
}

func (l *zerologLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

func (l *zerologLogger) Infof(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}

func (l *zerologLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn().Msgf(format, v...)
}

func (l *zerologLogger) Errorf(format string, v ...interface{}) {
	l.log.Error().Msgf(format, v...)
}

type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// Discard drops everything.
var Discard Logger = discard{}
