package serve

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Retention         time.Duration `envconfig:"ERRORS_RETENTION" default:"720h"` // 0 keeps records forever
	RetentionSchedule string        `envconfig:"ERRORS_RETENTION_SCHEDULE" default:"@daily"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
