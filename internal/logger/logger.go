package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Output is where log lines go besides the optional log file
var Output io.Writer = os.Stderr

// New creates a text logger at level, teeing to filePath when set.
// The returned closer releases the log file and is never nil.
func New(level string, filePath string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)

	if filePath == "" {
		log.SetOutput(Output)
		return log, nopCloser{}, nil
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(Output, file))
	return log, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
