package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateDam(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if err := ensurePositiveMap(map[string]int{
		"processing.pool_size":             c.Processing.PoolSize,
		"processing.max_attempts":          c.Processing.MaxAttempts,
		"processing.retry_initial_seconds": c.Processing.RetryInitialSeconds,
		"processing.retry_max_seconds":     c.Processing.RetryMaxSeconds,
		"processing.request_timeout":       c.Processing.RequestTimeout,
		"processing.poll_interval":         c.Processing.PollInterval,
	}); err != nil {
		return err
	}
	if c.Processing.RetryMaxSeconds < c.Processing.RetryInitialSeconds {
		return errors.New("processing.retry_max_seconds must be >= processing.retry_initial_seconds")
	}
	return nil
}

func (c *Config) validateServices() error {
	if strings.TrimSpace(c.AI.BaseURL) == "" {
		return errors.New("ai.base_url must be set")
	}
	if strings.TrimSpace(c.Storage.BaseURL) == "" {
		return errors.New("storage.base_url must be set")
	}
	return nil
}

func (c *Config) validateDam() error {
	switch c.Dam.SubfolderPattern {
	case "date", "batch", "literal":
	default:
		return fmt.Errorf("dam.subfolder_pattern must be one of date, batch, literal (got %q)", c.Dam.SubfolderPattern)
	}
	switch c.Dam.Visibility {
	case "private", "public":
	default:
		return fmt.Errorf("dam.visibility must be private or public (got %q)", c.Dam.Visibility)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
