package logger

type teeLogger struct {
	loggers []Logger
}

// NewTeeLogger returns a Logger that writes every entry to each of loggers.
func NewTeeLogger(loggers ...Logger) Logger {
	return &teeLogger{loggers: loggers}
}

func (t *teeLogger) each(fn func(Logger) Logger) Logger {
	out := make([]Logger, len(t.loggers))
	for i, l := range t.loggers {
		out[i] = fn(l)
	}
	return &teeLogger{loggers: out}
}

func (t *teeLogger) WithPrefix(prefix string) Logger {
	return t.each(func(l Logger) Logger { return l.WithPrefix(prefix) })
}

func (t *teeLogger) With(metadata map[string]interface{}) Logger {
	return t.each(func(l Logger) Logger { return l.With(metadata) })
}

func (t *teeLogger) IsLevelEnabled(level LogLevel) bool {
	for _, l := range t.loggers {
		if l.IsLevelEnabled(level) {
			return true
		}
	}
	return false
}

func (t *teeLogger) Trace(msg string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Trace(msg, args...)
	}
}

func (t *teeLogger) Debug(msg string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Debug(msg, args...)
	}
}

func (t *teeLogger) Info(msg string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Info(msg, args...)
	}
}

func (t *teeLogger) Warn(msg string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Warn(msg, args...)
	}
}

func (t *teeLogger) Error(msg string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Error(msg, args...)
	}
}
