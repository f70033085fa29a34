package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/config"
)

// New builds the process logger from the logging section of the config.
// Unknown levels fall back to info, "json" selects the JSON formatter.
func New(cfg config.Logging) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

func NewWithOutput(cfg config.Logging, out io.Writer) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	log.SetOutput(out)
	return log
}

// Discard returns an entry that drops everything, used by tests and as a
// fallback when a component is built without a logger.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// Component tags an entry with the name of the component emitting it.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
