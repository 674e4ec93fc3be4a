package logging

import "github.com/sirupsen/logrus"

// RetryLogger adapts logrus to the leveled logger interface expected by
// go-retryablehttp so retry attempts land in the same JSON stream.
type RetryLogger struct {
	entry *logrus.Entry
}

// NewRetryLogger tags every record with action=upstream_retry.
func NewRetryLogger(logger *logrus.Logger) *RetryLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetryLogger{entry: logger.WithField("action", "upstream_retry")}
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(pairs(keysAndValues)).Error(msg)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(pairs(keysAndValues)).Info(msg)
}

// Debug 级别承载每次请求的明细，默认 info 级别下不会输出。
func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(pairs(keysAndValues)).Warn(msg)
}

func pairs(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
