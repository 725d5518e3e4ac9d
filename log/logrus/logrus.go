// Package logrus adapts a logrus entry to rwcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/rwcache"
)

var _ rwcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every record with the cache namespace.
func New(l *logrus.Logger, namespace string) Logger {
	e := logrus.NewEntry(l)
	if namespace != "" {
		e = e.WithField("cache", namespace)
	}
	return Logger{E: e}
}

func (l Logger) Debug(msg string, f rwcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f rwcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f rwcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f rwcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f rwcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}
