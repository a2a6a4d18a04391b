package preflight

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CorrelationID string        `envconfig:"PREFLIGHT_CORRELATION_ID"`
	Timeout       time.Duration `envconfig:"PREFLIGHT_TIMEOUT" default:"60s"`
	MaxClockDrift time.Duration `envconfig:"PREFLIGHT_MAX_CLOCK_DRIFT" default:"5s"`
	MetricsFile   string        `envconfig:"PREFLIGHT_METRICS_FILE"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
