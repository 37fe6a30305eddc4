package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateApproval(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.PollIntervalSeconds <= 0 {
		return errors.New("queue.poll_interval_seconds must be positive")
	}
	if c.Queue.Workers <= 0 {
		return errors.New("queue.workers must be positive")
	}
	for name, value := range map[string]int{
		"queue.mine_timeout_seconds":     c.Queue.MineTimeoutSeconds,
		"queue.research_timeout_seconds": c.Queue.ResearchTimeoutSeconds,
		"queue.script_timeout_seconds":   c.Queue.ScriptTimeoutSeconds,
		"queue.review_timeout_seconds":   c.Queue.ReviewTimeoutSeconds,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateApproval() error {
	if c.Approval.TimeoutHours <= 0 {
		return errors.New("approval.timeout_hours must be positive")
	}
	if c.Approval.PollIntervalSeconds <= 0 {
		return errors.New("approval.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxScriptAttempts <= 0 {
		return errors.New("pipeline.max_script_attempts must be positive")
	}
	if c.Pipeline.SimilarityThreshold < 0 || c.Pipeline.SimilarityThreshold > 1 {
		return errors.New("pipeline.similarity_threshold must be between 0 and 1")
	}
	if strings.TrimSpace(c.Pipeline.Schedule) == "" {
		return errors.New("pipeline.schedule must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
