package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"todo-assistant/internal/config"
)

func setupLogger(env, logFilePath string) (*logrus.Logger, error) {
	log := logrus.New()

	if logFilePath != "" {
		logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(logFile)
	}

	switch env {
	case config.EnvLocal:
		log.SetFormatter(&logrus.TextFormatter{ForceColors: logFilePath == "", FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	case config.EnvDev:
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		log.SetLevel(logrus.WarnLevel)
	}

	return log, nil
}
