package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"

	"alchemiser/src/classifier"
	"alchemiser/src/connectors"
	"alchemiser/src/database"
	"alchemiser/src/errhandling"
	"alchemiser/src/events"
	"alchemiser/src/failure"
	"alchemiser/src/identifier"
	"alchemiser/src/metrics"
	"alchemiser/src/model"
	"alchemiser/src/repository"
	"alchemiser/src/retry"
)

const (
	module         = "preflight"
	notifyTimeout  = 15 * time.Second
	codeClockDrift = "CLOCK_DRIFT"
	codeDBDown     = "DATABASE_UNAVAILABLE"
	codeBadConfig  = "INVALID_CONFIG"
)

// ErrBlocking is returned when a check failed in a category that must stop trading.
var ErrBlocking = errors.New("preflight: blocking errors recorded")

// Step is one readiness check.
type Step struct {
	Name  string
	Run   errhandling.Operation
	Extra map[string]any
}

// Preflight checks configuration, storage, the broker and the notification
// channel before a trading run, and reports every failure in one go.
type Preflight struct {
	Log           *logger.Entry
	Out           io.Writer
	CorrelationID string
	Config        *Config
}

type settings struct {
	handler errhandling.Config
	retry   retry.Config
	events  events.Config
	broker  connectors.Config
	db      database.Config
	errs    []error
}

func (p *Preflight) Start() error {
	if p.Config == nil {
		p.Config = GetConfig()
	}
	if p.Log == nil {
		p.Log = logger.WithField("cmd", module)
	}
	if p.Out == nil {
		p.Out = os.Stdout
	}
	correlationID := p.CorrelationID
	if correlationID == "" {
		correlationID = p.Config.CorrelationID
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := p.Log.WithField("correlation_id", correlationID)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, p.Config.Timeout)
	defer cancel()

	s := loadSettings()

	pipeline, err := events.NewPipeline(s.events, log)
	if err != nil {
		// Kafka could not be set up; keep going with the log sink and record it.
		s.errs = append(s.errs, failure.Wrap(err, model.CategoryNotification, classifier.CodePublishFailed))
		pipeline, _ = events.NewPipeline(events.Config{BufferSize: 16}, log)
	}
	defer pipeline.Close()

	registry := prometheus.NewRegistry()
	store := &lazyStore{}
	h, err := errhandling.NewHandler(log, s.handler, errhandling.Dependencies{
		Classifier: classifier.New(),
		Normalizer: identifier.NewOrderIDNormalizer(),
		Publisher:  pipeline.Publisher,
		Store:      store,
		Metrics:    metrics.New(registry),
	})
	if err != nil {
		return err
	}
	defer h.Close()

	policy := retry.PolicyFromConfig(s.retry)
	policy.OnRetry = func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).Debug("retrying preflight check")
	}

	steps := p.steps(s, store)
	checkErr := Check(ctx, h, policy, correlationID, steps, p.Out)

	if p.Config.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(p.Config.MetricsFile, registry); err != nil {
			log.WithError(err).Warn("failed to write metrics file")
		}
	}
	return checkErr
}

// Check runs every step, notifies once for the whole run and writes the report to out.
func Check(ctx context.Context, h *errhandling.Handler, policy errhandling.RetryPolicy, correlationID string, steps []Step, out io.Writer) error {
	for _, step := range steps {
		ec := errhandling.ErrorContext{
			Operation:     step.Name,
			Module:        module,
			CorrelationID: correlationID,
			Extra:         step.Extra,
		}
		_ = h.Run(ctx, ec, policy, step.Run, errhandling.WithoutNotification())
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	h.SendErrorNotificationIfNeeded(notifyCtx, correlationID)

	if _, err := fmt.Fprint(out, h.GenerateReport()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if h.HasBlockingErrors() {
		return fmt.Errorf("%w: %d error(s), see report", ErrBlocking, h.Len())
	}
	return nil
}

func loadSettings() settings {
	var s settings
	var err error
	if s.handler, err = errhandling.LoadConfig(); err != nil {
		s.errs = append(s.errs, err)
		s.handler = errhandling.DefaultConfig()
	}
	if s.retry, err = retry.LoadConfig(); err != nil {
		s.errs = append(s.errs, err)
		s.retry = retry.Config{MaxAttempts: 1}
	}
	if s.events, err = events.LoadConfig(); err != nil {
		s.errs = append(s.errs, err)
		s.events = events.Config{BufferSize: 16}
	}
	if s.broker, err = connectors.LoadConfig(); err != nil {
		s.errs = append(s.errs, err)
	}
	if s.db, err = database.LoadConfig(); err != nil {
		s.errs = append(s.errs, err)
	}
	return s
}

// steps lists the checks in run order. The database comes first so the
// records of every later step reach the store.
func (p *Preflight) steps(s settings, store *lazyStore) []Step {
	var steps []Step
	if s.db.EnableDB {
		steps = append(steps, Step{
			Name:  "database",
			Extra: map[string]any{"driver": s.db.Driver},
			Run: func(ctx context.Context) error {
				if database.MainDB == nil {
					if err := database.InitMainDB(); err != nil {
						return failure.WrapTransient(err, model.CategoryData, codeDBDown)
					}
				}
				if err := database.Ping(ctx, database.MainDB); err != nil {
					return failure.WrapTransient(err, model.CategoryData, codeDBDown)
				}
				store.set(repository.NewErrorRecordRepository())
				return nil
			},
		})
	}

	steps = append(steps, Step{
		Name: "load_config",
		Run: func(context.Context) error {
			if len(s.errs) == 0 {
				return nil
			}
			return failure.Wrap(errors.Join(s.errs...), model.CategoryConfiguration, codeBadConfig)
		},
	})

	if s.broker.BrokerBaseURL != "" {
		client := connectors.NewClient(s.broker)
		brokerExtra := map[string]any{"broker": s.broker.BrokerName, "symbol": s.broker.BrokerSymbol}
		steps = append(steps,
			Step{
				Name:  "broker_time",
				Extra: brokerExtra,
				Run: func(ctx context.Context) error {
					serverTime, err := client.ServerTime(ctx)
					if err != nil {
						return err
					}
					drift := time.Since(serverTime)
					if drift < 0 {
						drift = -drift
					}
					if drift > p.Config.MaxClockDrift {
						return failure.New(model.CategoryData, codeClockDrift,
							fmt.Sprintf("local clock is %s away from broker time", drift.Round(time.Millisecond)))
					}
					return nil
				},
			},
			Step{
				Name:  "market_data",
				Extra: brokerExtra,
				Run: func(ctx context.Context) error {
					quote, err := client.LastPrice(ctx, s.broker.BrokerSymbol)
					if err != nil {
						return err
					}
					p.Log.WithFields(logger.Fields{
						"symbol": quote.Symbol,
						"last":   quote.Last.String(),
					}).Info("market data available")
					return nil
				},
			},
			Step{
				Name:  "broker_account",
				Extra: brokerExtra,
				Run:   client.CheckAccount,
			},
		)
	}

	if s.events.WebhookURL != "" {
		webhook := events.NewWebhook(s.events.WebhookURL, s.events.WebhookSecret, s.events.WebhookTimeout)
		steps = append(steps, Step{
			Name: "notification_webhook",
			Run:  webhook.Ping,
		})
	}
	return steps
}

// lazyStore persists records once the database step has succeeded.
type lazyStore struct {
	repo atomic.Pointer[repository.ErrorRecordRepository]
}

func (s *lazyStore) set(repo *repository.ErrorRecordRepository) {
	s.repo.Store(repo)
}

func (s *lazyStore) Create(ctx context.Context, record model.ErrorRecord) error {
	repo := s.repo.Load()
	if repo == nil {
		return nil
	}
	return repo.Create(ctx, record)
}
