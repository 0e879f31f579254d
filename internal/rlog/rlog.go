// Package rlog wraps logrus with the pass-boundary Debug/Warn logging this
// compiler emits alongside the single CompileError path: logging is purely
// diagnostic and never substitutes for an error return.
package rlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetLevel parses one of "debug", "info", "warn", "error" and applies it;
// an unrecognized level leaves the current level untouched.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	logger.SetLevel(parsed)
}

// PassBoundary logs, at Debug, that a compiler pass has started producing
// output for a named unit (a function, the entry block).
func PassBoundary(pass, unit string) {
	logger.WithFields(logrus.Fields{"pass": pass, "unit": unit}).Debug("pass boundary")
}

// Warn logs a non-fatal condition encountered while resolving an Open
// Question's canonicalized behavior (e.g. a capture that could not be
// resolved and was silently dropped rather than captured).
func Warn(context string, fields map[string]interface{}) {
	logger.WithFields(fields).Warn(context)
}

// Debugf logs a free-form Debug-level diagnostic.
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}
