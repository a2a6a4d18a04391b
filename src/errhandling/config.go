package errhandling

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"alchemiser/src/model"
)

const (
	DefaultMaxRecords  = 100
	DefaultStoreBuffer = 256
)

type Config struct {
	MaxRecords         int      `envconfig:"ERRORS_MAX_RECORDS" default:"100"`
	BlockingCategories []string `envconfig:"ERRORS_BLOCKING_CATEGORIES" default:"DATA,TRADING"`
	Source             string   `envconfig:"ERRORS_SOURCE" default:"alchemiser"`
	RedactExtraKeys    []string `envconfig:"REDACT_EXTRA_KEYS"`
	// StoreBuffer is how many records may wait for the record store.
	StoreBuffer int `envconfig:"ERRORS_STORE_BUFFER" default:"256"`
}

// DefaultConfig matches the envconfig defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecords:         DefaultMaxRecords,
		BlockingCategories: []string{string(model.CategoryData), string(model.CategoryTrading)},
		Source:             "alchemiser",
		StoreBuffer:        DefaultStoreBuffer,
	}
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
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.MaxRecords < 1 {
		return fmt.Errorf("ERRORS_MAX_RECORDS must be at least 1, got %d", c.MaxRecords)
	}
	if c.StoreBuffer < 0 {
		return fmt.Errorf("ERRORS_STORE_BUFFER must not be negative, got %d", c.StoreBuffer)
	}
	for _, name := range c.BlockingCategories {
		if cat := model.ParseCategory(name); cat == model.CategoryUnknown && !strings.EqualFold(strings.TrimSpace(name), string(model.CategoryUnknown)) {
			return fmt.Errorf("ERRORS_BLOCKING_CATEGORIES: unknown category %q", name)
		}
	}
	return nil
}

func (c Config) blockingSet() map[model.Category]bool {
	set := make(map[model.Category]bool, len(c.BlockingCategories))
	for _, name := range c.BlockingCategories {
		set[model.ParseCategory(name)] = true
	}
	return set
}
