package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProcessing()
	c.normalizeAI()
	c.normalizeStorage()
	c.normalizeDam()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if value, ok := os.LookupEnv("GLOSS_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = strings.TrimSpace(value)
	}
	return nil
}

func (c *Config) normalizeProcessing() {
	if c.Processing.PoolSize <= 0 {
		c.Processing.PoolSize = defaultPoolSize
	}
	if c.Processing.MaxAttempts <= 0 {
		c.Processing.MaxAttempts = defaultMaxAttempts
	}
	if c.Processing.RetryInitialSeconds <= 0 {
		c.Processing.RetryInitialSeconds = defaultRetryInitialSeconds
	}
	if c.Processing.RetryMaxSeconds <= 0 {
		c.Processing.RetryMaxSeconds = defaultRetryMaxSeconds
	}
	if c.Processing.RequestTimeout <= 0 {
		c.Processing.RequestTimeout = defaultRequestTimeout
	}
	if c.Processing.PollInterval <= 0 {
		c.Processing.PollInterval = defaultPollInterval
	}
}

func (c *Config) normalizeAI() {
	c.AI.BaseURL = strings.TrimRight(strings.TrimSpace(c.AI.BaseURL), "/")
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = defaultAIBaseURL
	}
	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	if value, ok := os.LookupEnv("GLOSS_AI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.AI.APIKey = strings.TrimSpace(value)
	}
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = defaultStorageBaseURL
	}
	c.Storage.APIKey = strings.TrimSpace(c.Storage.APIKey)
	if value, ok := os.LookupEnv("GLOSS_STORAGE_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Storage.APIKey = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeDam() {
	c.Dam.Provider = strings.TrimSpace(c.Dam.Provider)
	c.Dam.APIURL = strings.TrimRight(strings.TrimSpace(c.Dam.APIURL), "/")
	c.Dam.TargetFolder = strings.TrimSpace(c.Dam.TargetFolder)
	c.Dam.CredentialsRef = strings.TrimSpace(c.Dam.CredentialsRef)
	c.Dam.SubfolderPattern = strings.ToLower(strings.TrimSpace(c.Dam.SubfolderPattern))
	if c.Dam.SubfolderPattern == "" {
		c.Dam.SubfolderPattern = defaultDamSubfolderPattern
	}
	c.Dam.Visibility = strings.ToLower(strings.TrimSpace(c.Dam.Visibility))
	if c.Dam.Visibility == "" {
		c.Dam.Visibility = defaultDamVisibility
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
