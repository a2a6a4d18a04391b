package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"alchemiser/src/handler"
	"alchemiser/src/redact"
	"alchemiser/src/repository"
)

// Routes holds what the ops API serves.
type Routes struct {
	Records  *repository.ErrorRecordRepository
	Gatherer prometheus.Gatherer
	Redactor *redact.Redactor
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	if routes.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(routes.Gatherer, promhttp.HandlerOpts{}))
	}
	if routes.Records != nil {
		r.Route("/errors", func(r chi.Router) {
			r.Get("/", handler.SearchErrorsHandler(routes.Records))
			r.Get("/report", handler.ErrorReportHandler(routes.Records, routes.Redactor))
		})
	}
	return r
}

// StartServer blocks until SIGINT or SIGTERM, then shuts down gracefully.
func StartServer(config *Config, h http.Handler) {
	addr := ":" + config.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
