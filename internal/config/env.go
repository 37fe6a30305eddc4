package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment overrides for per-deployment options. File settings lose to
// these so containerized runs can reconfigure without editing TOML.
const (
	envQueuePath           = "APOGEE_QUEUE_PATH"
	envDatabasePath        = "APOGEE_DB_PATH"
	envApprovalTimeoutHrs  = "APOGEE_APPROVAL_TIMEOUT_HOURS"
	envApprovalPollSeconds = "APOGEE_APPROVAL_POLL_INTERVAL_S"
	envSchedule            = "APOGEE_PIPELINE_SCHEDULE"
	envMaxScriptAttempts   = "APOGEE_MAX_SCRIPT_ATTEMPTS"
	envLLMAPIKey           = "APOGEE_LLM_API_KEY"
	envNtfyTopic           = "APOGEE_NTFY_TOPIC"
)

func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv(envQueuePath)); v != "" {
		c.Queue.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(envDatabasePath)); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(envSchedule)); v != "" {
		c.Pipeline.Schedule = v
	}
	if v := strings.TrimSpace(os.Getenv(envLLMAPIKey)); v != "" {
		c.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(envNtfyTopic)); v != "" {
		c.Notifications.NtfyTopic = v
	}

	intOverrides := []struct {
		env    string
		target *int
	}{
		{envApprovalTimeoutHrs, &c.Approval.TimeoutHours},
		{envApprovalPollSeconds, &c.Approval.PollIntervalSeconds},
		{envMaxScriptAttempts, &c.Pipeline.MaxScriptAttempts},
	}
	for _, override := range intOverrides {
		raw := strings.TrimSpace(os.Getenv(override.env))
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", override.env, err)
		}
		*override.target = parsed
	}
	return nil
}
