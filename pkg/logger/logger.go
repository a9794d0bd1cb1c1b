package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger writes printf-style lines through logrus. Info goes to one stream,
// warnings and errors to another. Fields attached with With are written as
// key=value pairs on every line.
type Logger struct {
	out *logrus.Entry
	err *logrus.Entry
}

func New() *Logger {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters routes info lines to out and warn/error lines to errOut.
func NewWithWriters(out, errOut io.Writer) *Logger {
	return &Logger{
		out: logrus.NewEntry(newLogrus(out)),
		err: logrus.NewEntry(newLogrus(errOut)),
	}
}

func newLogrus(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
	return l
}

// With returns a child logger that carries the given key/value pairs.
// A trailing key without a value is logged as key=<missing>.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	fields := make(logrus.Fields, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		var value interface{} = "<missing>"
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		fields[fmt.Sprint(keyvals[i])] = value
	}
	return &Logger{
		out: l.out.WithFields(fields),
		err: l.err.WithFields(fields),
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.out.Infof(format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.err.Warnf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.err.Errorf(format, v...)
}
