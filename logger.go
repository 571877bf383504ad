package rohc

import (
	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	DEBUG = LogLevel(1)
	INFO  = LogLevel(2)
	WARN  = LogLevel(3)
	ERROR = LogLevel(4)
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARNING"
	case ERROR:
		return "ERROR"
	}
	panic("invalid LogLevel")
}

// Logf is the trace callback of the engine.  It defaults to a no-op; callers
// may install their own sink, or use SetLogger for a logrus backend.
var Logf = func(lvl LogLevel, f string, args ...interface{}) {}

// SetLogger routes engine traces to a logrus logger.
func SetLogger(log *logrus.Logger) {
	Logf = func(lvl LogLevel, f string, args ...interface{}) {
		switch lvl {
		case DEBUG:
			log.Debugf(f, args...)
		case INFO:
			log.Infof(f, args...)
		case WARN:
			log.Warnf(f, args...)
		case ERROR:
			log.Errorf(f, args...)
		}
	}
}
