package worker

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// queueLogger routes asynq's internal logging through slog
type queueLogger struct {
	log *slog.Logger
}

// NewQueueLogger adapts log to asynq.Logger
func NewQueueLogger(log *slog.Logger) asynq.Logger {
	return &queueLogger{log: log.With(slog.String("component", "asynq"))}
}

func (l *queueLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *queueLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *queueLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *queueLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

func (l *queueLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
