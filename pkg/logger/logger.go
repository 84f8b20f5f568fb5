package logger

import (
	"io"
	"log"
	"os"
)

// LoggerInterface defines the methods that your logger should implement.
type LoggerInterface interface {
	Printf(format string, v ...interface{})
}

// Logger represents a logger instance.
type Logger struct {
	*log.Logger
}

// NewLogger creates a file-backed logger at the given path.
func NewLogger(path string) (LoggerInterface, error) {
	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Logger{
		Logger: log.New(logFile, "", log.LstdFlags),
	}, nil
}

// NewWithWriter creates a logger over an arbitrary writer. Used by tests and
// by the shell, which logs to its own output.
func NewWithWriter(w io.Writer) LoggerInterface {
	return &Logger{
		Logger: log.New(w, "", log.LstdFlags),
	}
}
