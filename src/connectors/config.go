package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BrokerName      string        `envconfig:"BROKER_NAME" default:"phemex"`
	BrokerBaseURL   string        `envconfig:"BROKER_BASE_URL" default:"https://testnet-api.phemex.com"`
	BrokerAPIKey    string        `envconfig:"BROKER_API_KEY"`
	BrokerAPISecret string        `envconfig:"BROKER_API_SECRET"`
	BrokerSymbol    string        `envconfig:"BROKER_SYMBOL" default:"BTCUSDT"`
	BrokerTimeout   time.Duration `envconfig:"BROKER_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func LoadConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, fmt.Errorf("error processing env config: %w", err)
	}
	return config, nil
}
