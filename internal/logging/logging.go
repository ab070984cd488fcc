package logging

import (
	"io"
	"os"
	"strings"

	"github.com/dunamismax/iconforge/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the process logger. Unknown levels fall back to info and any
// format other than "text" produces JSON lines.
func New(cfg config.LogConfig, component string) *logrus.Entry {
	return newWithOutput(cfg, component, os.Stdout)
}

func newWithOutput(cfg config.LogConfig, component string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger.WithField("component", component)
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
