package log

import (
	"fmt"
	"io"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
)

var logger logr.Logger

// Init configures the process wide logger, writing to stdout.
func Init(conf config.Logs) error {
	ret, err := New(conf, os.Stdout)
	if err != nil {
		return err
	}

	logger = ret.WithName("orchestrator")

	return nil
}

// New creates a logr.Logger backed by logrus.
// logs.level n enables V(0) up to V(n).
func New(conf config.Logs, out io.Writer) (logr.Logger, error) {
	loggerImpl := logrus.New()

	loggerImpl.SetLevel(logrus.Level(conf.Level + int(logrus.InfoLevel)))
	loggerImpl.SetOutput(out)

	switch conf.Encoder {
	case config.EncoderTypeConsole:
		loggerImpl.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
		})
	case config.EncoderTypeJson:
		loggerImpl.SetFormatter(&logrus.JSONFormatter{})
	default:
		return logr.Discard(), fmt.Errorf("unexpected encoder value %v", conf.Encoder)
	}

	return logrusr.New(loggerImpl, logrusr.WithReportCaller()), nil
}

func Logger() logr.Logger {
	return logger
}
