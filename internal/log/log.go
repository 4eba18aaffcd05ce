// Package log builds the orchestrator's logger, grounded directly on the
// teacher's pkg/log/log.go: a *logrus.Entry, JSON-formatted. When debugging
// it writes to a file at the level LOG_LEVEL names; otherwise output is
// discarded and the level is fixed at error.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// New returns a logger carrying the orchestrator's identifying fields,
// mirroring pkg/log.NewLogger's shape.
func New(debug bool, stateDir, version string) *logrus.Entry {
	var base *logrus.Logger
	if debug || os.Getenv("DEBUG") == "TRUE" {
		base = newDevelopmentLogger(stateDir)
	} else {
		base = newProductionLogger()
	}

	base.Formatter = &logrus.JSONFormatter{}

	return base.WithFields(logrus.Fields{
		"component": "caelus-orchestrator",
		"version":   version,
	})
}

func getLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func newDevelopmentLogger(stateDir string) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(getLogLevel())
	file, err := os.OpenFile(filepath.Join(stateDir, "caelus-orchestrator.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Println("unable to log to file, falling back to stderr")
		l.SetOutput(os.Stderr)
		return l
	}
	l.SetOutput(file)
	return l
}

func newProductionLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	l.SetLevel(logrus.ErrorLevel)
	return l
}
