package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/todo-auth/internal/config"
)

const serviceName = "todo-auth"

// New creates the structured logger used across the service.
func New(cfg config.LogConfig, env string) *logrus.Logger {
	return NewWithOutput(cfg, env, os.Stdout)
}

// NewWithOutput is New with an explicit sink; tests pass a buffer.
func NewWithOutput(cfg config.LogConfig, env string, out io.Writer) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}
	logger.SetOutput(out)
	logger.AddHook(&defaultFields{fields: logrus.Fields{
		"service":     serviceName,
		"environment": env,
	}})
	return logger
}

// WithRequestID tags an entry with the request id echoed to the client.
func WithRequestID(logger logrus.FieldLogger, requestID string) *logrus.Entry {
	return logger.WithField("request_id", requestID)
}

// WithUserID adds the authenticated user to the entry.
func WithUserID(logger logrus.FieldLogger, userID string) *logrus.Entry {
	return logger.WithField("user_id", userID)
}

// defaultFields stamps every entry with the service identity.
type defaultFields struct {
	fields logrus.Fields
}

func (h *defaultFields) Levels() []logrus.Level { return logrus.AllLevels }

func (h *defaultFields) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}
