// Package logger builds the process logger.
package logger

import (
	"github.com/sirupsen/logrus"
	"io"
	"os"
)

// New creates a logrus logger at level writing to stdout and, when file is
// set, appending to it as well. An unknown level falls back to info.
func New(level, file string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if file == "" {
		return log
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.WithError(err).Warn("failed to log to file, using stdout only")
		return log
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return log
}
