package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"alchemiser/cmd/serve"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

// main runs the ops API; the full command set lives in cmd.
func main() {
	SetupLogger()
	defer handlePanic()

	s := &serve.Serve{Log: logger.WithField("app", APP_NAME)}
	if err := s.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start ops API")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
