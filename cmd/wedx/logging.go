package main

import (
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/serpius-project/wedx-go/internal/config"
)

// setupLogging configures the console formatter and, when a log file is set,
// a JSON copy of every entry written through a rotating file.
func setupLogging(cfg config.Config) func() error {
	logrus.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true})

	logger := logrus.StandardLogger()
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if cfg.LogFile == "" {
		return func() error { return nil }
	}

	rot := config.EventLogRotation
	writer := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}
	logger.AddHook(lfshook.NewHook(
		lfshook.WriterMap{
			logrus.DebugLevel: writer,
			logrus.InfoLevel:  writer,
			logrus.WarnLevel:  writer,
			logrus.ErrorLevel: writer,
			logrus.FatalLevel: writer,
		},
		&logrus.JSONFormatter{},
	))
	return writer.Close
}
