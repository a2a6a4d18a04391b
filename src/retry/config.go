package retry

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxAttempts   int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	InitialDelay  time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"200ms"`
	MaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`
	JitterPercent uint64        `envconfig:"RETRY_JITTER_PERCENT" default:"10"`
}

func LoadConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, fmt.Errorf("error processing env config: %w", err)
	}
	return config, nil
}

func PolicyFromConfig(c Config) Policy {
	return Policy{
		MaxAttempts:   c.MaxAttempts,
		InitialDelay:  c.InitialDelay,
		MaxDelay:      c.MaxDelay,
		JitterPercent: c.JitterPercent,
	}
}
