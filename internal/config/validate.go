package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkers() error {
	endpoints := map[string]string{
		"workers.discover_url":   c.Workers.DiscoverURL,
		"workers.download_url":   c.Workers.DownloadURL,
		"workers.transcribe_url": c.Workers.TranscribeURL,
		"workers.analyze_url":    c.Workers.AnalyzeURL,
		"workers.extract_url":    c.Workers.ExtractURL,
	}
	for key, value := range endpoints {
		if value == "" {
			continue
		}
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%s must be an http(s) URL", key)
		}
	}
	if c.Workers.RequestTimeout <= 0 {
		return errors.New("workers.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.SimilarityFloor <= 0 || c.Matching.SimilarityFloor >= 1 {
		return errors.New("matching.similarity_floor must be between 0 and 1")
	}
	if c.Matching.AutoAcceptThreshold < 0 || c.Matching.AutoAcceptThreshold > 100 {
		return errors.New("matching.auto_accept_threshold must be between 0 and 100")
	}
	if c.Matching.MaxSuggestions <= 0 {
		return errors.New("matching.max_suggestions must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxCost < 0 {
		return errors.New("pipeline.max_cost must not be negative")
	}
	if c.Pipeline.MaxHearings < 0 {
		return errors.New("pipeline.max_hearings must not be negative")
	}
	if c.Pipeline.StatePollSeconds <= 0 {
		return errors.New("pipeline.state_poll_seconds must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.TickSeconds <= 0 {
		return errors.New("scheduler.tick_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
