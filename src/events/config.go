package events

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WebhookURL     string        `envconfig:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret  string        `envconfig:"NOTIFY_WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `envconfig:"NOTIFY_WEBHOOK_TIMEOUT" default:"10s"`
	KafkaBroker    string        `envconfig:"KAFKA_BROKER"`
	KafkaTopic     string        `envconfig:"KAFKA_TOPIC" default:"alchemiser_error_notifications"`
	BufferSize     int           `envconfig:"NOTIFY_BUFFER_SIZE" default:"256"`
	RatePerMinute  int           `envconfig:"NOTIFY_RATE_PER_MINUTE" default:"30"` // 0 disables the limit
	RateBurst      int           `envconfig:"NOTIFY_RATE_BURST" default:"5"`
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
