package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"alchemiser/src/database"
	"alchemiser/src/model"
	"alchemiser/src/redact"
	reportfmt "alchemiser/src/report"
	"alchemiser/src/repository"
)

// recordFinder is the part of the repository the command reads from.
type recordFinder interface {
	FindByCorrelationID(ctx context.Context, correlationID string, limit int) ([]model.ErrorRecord, error)
}

// Report prints the error report of a persisted run.
type Report struct {
	Log           *logger.Entry
	Out           io.Writer
	CorrelationID string
	Config        *Config

	records recordFinder
}

func (r *Report) Start() error {
	if r.CorrelationID == "" {
		return errors.New("a correlation id is required")
	}
	if r.Config == nil {
		r.Config = GetConfig()
	}
	if r.Log == nil {
		r.Log = logger.WithField("cmd", "report")
	}
	if r.Out == nil {
		r.Out = os.Stdout
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if r.records == nil {
		if err := database.InitMainDB(); err != nil {
			r.Log.WithError(err).Error("Failed to connect to main database")
			return err
		}
		if err := database.InitReadOnlyDB(); err != nil {
			r.Log.WithError(err).Error("Failed to connect to read-only database")
			return err
		}
		r.records = repository.NewErrorRecordRepositoryWithDB(database.ReadOnlyDB)
	}

	records, err := r.records.FindByCorrelationID(ctx, r.CorrelationID, r.Config.Limit)
	if err != nil {
		return fmt.Errorf("load error records: %w", err)
	}
	r.Log.WithFields(logger.Fields{
		"correlation_id": r.CorrelationID,
		"count":          len(records),
	}).Info("loaded error records")

	_, err = fmt.Fprint(r.Out, reportfmt.Build(records, redact.New(r.Config.RedactExtraKeys...)))
	return err
}
