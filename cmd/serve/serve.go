package serve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	logger "github.com/sirupsen/logrus"

	"alchemiser/src/database"
	"alchemiser/src/errhandling"
	"alchemiser/src/redact"
	"alchemiser/src/repository"
	"alchemiser/src/server"
)

// Serve runs the ops API: health, metrics and, with a database, error search.
type Serve struct {
	Log *logger.Entry
}

func (s *Serve) Start() error {
	if s.Log == nil {
		s.Log = logger.WithField("cmd", "serve")
	}
	routes, err := s.routes()
	if err != nil {
		return err
	}

	config := GetConfig()
	if routes.Records != nil && config.Retention > 0 {
		// purges go through the read/write connection
		c, err := scheduleRetention(s.Log, config, repository.NewErrorRecordRepository())
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	server.StartServer(server.GetConfig(), server.NewRouter(routes))
	return nil
}

// routes exposes runtime metrics only. Error counters are recorded by the
// process that handles errors; preflight writes them with PREFLIGHT_METRICS_FILE.
func (s *Serve) routes() (server.Routes, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	routes := server.Routes{
		Gatherer: registry,
		Redactor: redact.New(errhandling.GetConfig().RedactExtraKeys...),
	}

	if !database.GetConfig().EnableDB {
		s.Log.Info("ENABLE_DB is false, /errors routes are disabled")
		return routes, nil
	}
	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		s.Log.WithError(err).Error("Failed to connect to main database")
		return routes, err
	}
	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		s.Log.WithError(err).Error("Failed to connect to read-only database")
		return routes, err
	}
	routes.Records = repository.NewErrorRecordRepositoryWithDB(database.ReadOnlyDB)
	return routes, nil
}
