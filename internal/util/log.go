package util

import (
	"io"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
	})
	return l
}

// Logger returns the process-wide logger. Components derive their own
// entries via WithField("component", ...).
func Logger() *logrus.Logger {
	return logger
}

// ComponentLogger returns a logger entry scoped to a component name.
func ComponentLogger(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// SetLogLevel sets the minimum log level to display.
func SetLogLevel(level logrus.Level) {
	logger.SetLevel(level)
}

// SetVerbose enables verbose (debug) logging.
func SetVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// SetQuiet enables quiet mode (errors only).
func SetQuiet(quiet bool) {
	if quiet {
		logger.SetLevel(logrus.ErrorLevel)
	}
}

// SetLogOutput redirects log output, mainly for tests and embedders that
// install their own sink.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}
