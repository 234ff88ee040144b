// Package logging configures the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger and returns it.
// format "json" is meant for log aggregation; anything else is human-readable text.
func Init(level, format string) *logrus.Logger {
	return configure(logrus.StandardLogger(), os.Stdout, level, format)
}

// New returns a separately configured logger writing to w.
func New(w io.Writer, level, format string) *logrus.Logger {
	return configure(logrus.New(), w, level, format)
}

func configure(logger *logrus.Logger, w io.Writer, level, format string) *logrus.Logger {
	logger.SetOutput(w)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
