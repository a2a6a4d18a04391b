package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
)

const purgeTimeout = time.Minute

type purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// scheduleRetention starts a cron job deleting records older than retention.
func scheduleRetention(log *logger.Entry, cfg *Config, repo purger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(cfg.RetentionSchedule, purge(log, repo, cfg.Retention, time.Now)); err != nil {
		return nil, fmt.Errorf("invalid ERRORS_RETENTION_SCHEDULE %q: %w", cfg.RetentionSchedule, err)
	}
	c.Start()
	log.WithFields(logger.Fields{
		"retention": cfg.Retention.String(),
		"schedule":  cfg.RetentionSchedule,
	}).Info("error record retention scheduled")
	return c, nil
}

func purge(log *logger.Entry, repo purger, retention time.Duration, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()

		cutoff := now().Add(-retention)
		n, err := repo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			log.WithError(err).Error("error record purge failed")
			return
		}
		log.WithFields(logger.Fields{
			"deleted": n,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("purged old error records")
	}
}
