package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"alchemiser/cmd/preflight"
	"alchemiser/cmd/report"
	"alchemiser/cmd/serve"
)

var Version string

// SetupLogger reads LOG_LEVEL and LOG_FORMAT ("text" or "json").
func SetupLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()

	app := cli.NewApp()
	app.Name = "Alchemiser CMD"
	app.Usage = "The Alchemiser error handling command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		reportCMD,
		preflightCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var correlationFlag = cli.StringFlag{
	Name:  "correlation-id",
	Usage: "correlation id of the trading run",
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the ops API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve /healthcheck, /metrics and, with ENABLE_DB, the persisted error search`,
	}
	reportCMD = cli.Command{
		Name:        "report",
		Usage:       "print the error report of a persisted run",
		Action:      reportAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{correlationFlag},
		Description: `Load the error records of one correlation id and print the report`,
	}
	preflightCMD = cli.Command{
		Name:        "preflight",
		Usage:       "check the trading run can start",
		Action:      preflightAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{correlationFlag},
		Description: `Check configuration, database, broker and notification channel, report and notify once`,
	}
)

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting serve CMD")

	s := &serve.Serve{Log: logrus.WithField("cmd", "serve")}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reportAction(c *cli.Context) error {
	logrus.Info("Starting report CMD")

	r := &report.Report{
		Log:           logrus.WithField("cmd", "report"),
		CorrelationID: c.String("correlation-id"),
	}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func preflightAction(c *cli.Context) error {
	logrus.Info("Starting preflight CMD")

	p := &preflight.Preflight{
		Log:           logrus.WithField("cmd", "preflight"),
		CorrelationID: c.String("correlation-id"),
	}
	if err := p.Start(); err != nil {
		logrus.WithError(err).Error("Preflight failed")
		return err
	}
	return nil
}
