package report

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Limit           int      `envconfig:"REPORT_LIMIT" default:"500"`
	RedactExtraKeys []string `envconfig:"REDACT_EXTRA_KEYS"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
