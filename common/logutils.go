package common

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const ServiceName = "docflow"

func init() {
	SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// SetupLogger configures the logrus standard logger, unknown levels fall back to info.
func SetupLogger(level, format string) {
	logger := logrus.StandardLogger()
	logger.Out = os.Stdout
	if strings.EqualFold(format, "json") {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{}
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	logger.ReplaceHooks(logrus.LevelHooks{})
	logger.AddHook(&DefaultFieldsHook{})
}

type DefaultFieldsHook struct {
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["serviceName"] = ServiceName
	return nil
}
