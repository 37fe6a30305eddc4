package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apogee/internal/config"
	"apogee/internal/media"
	"apogee/internal/store"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[llm]
api_key = "test"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return &cliTestEnv{cfg: cfg, store: st, configPath: configPath}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIChannelInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "channel", "init", "--name", "Science Shorts", "--niche", "popular science")
	if err != nil {
		t.Fatalf("channel init: %v", err)
	}
	if !strings.Contains(out, "Science Shorts") {
		t.Fatalf("output %q missing channel name", out)
	}

	out, _, err = runCLI(t, env.configPath, "channel", "show")
	if err != nil {
		t.Fatalf("channel show: %v", err)
	}
	if !strings.Contains(out, "popular science") {
		t.Fatalf("output %q missing niche", out)
	}
}

func TestCLITopicsListAndApprove(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	channel, err := env.store.EnsureChannel(ctx, "Science Shorts", "popular science")
	if err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	topic := &media.Topic{ChannelID: channel.ID, Title: "Why glass is not a slow liquid"}
	if err := env.store.InsertTopic(ctx, topic); err != nil {
		t.Fatalf("InsertTopic: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "topics", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("topics list: %v", err)
	}
	if !strings.Contains(out, "Why glass is not a slow liquid") {
		t.Fatalf("output %q missing topic title", out)
	}

	if _, _, err := runCLI(t, env.configPath, "topics", "approve", topic.ID); err != nil {
		t.Fatalf("topics approve: %v", err)
	}

	loaded, err := env.store.TopicByID(ctx, topic.ID)
	if err != nil {
		t.Fatalf("TopicByID: %v", err)
	}
	if loaded.Status != media.TopicApproved {
		t.Fatalf("status = %s, want approved", loaded.Status)
	}
}

func TestCLITopicsRejectInvalidStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.store.EnsureChannel(context.Background(), "Science Shorts", ""); err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "topics", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestCLIStatusWithoutChannel(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No channel configured") {
		t.Fatalf("output %q missing hint", out)
	}
}

func TestCLIStatusReportsCounts(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	channel, err := env.store.EnsureChannel(ctx, "Science Shorts", "popular science")
	if err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	topic := &media.Topic{ChannelID: channel.ID, Title: "The math of traffic jams"}
	if err := env.store.InsertTopic(ctx, topic); err != nil {
		t.Fatalf("InsertTopic: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, fragment := range []string{"Science Shorts", "1 total, 1 pending", "Next scheduled run"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("output %q missing %q", out, fragment)
		}
	}
}

func TestCLIQueueEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "queue")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if !strings.Contains(out, "queued") || !strings.Contains(out, "total") {
		t.Fatalf("output %q missing queue stats", out)
	}
}

func TestCLIConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output %q missing target path", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read generated config: %v", err)
	}
	if !strings.Contains(string(data), "[pipeline]") {
		t.Fatal("generated config missing pipeline section")
	}

	// second run without --overwrite refuses to clobber
	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestCLIConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, fragment := range []string{"schedule:", "0 8 * * *", "llm_api_key_set:", "yes"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("output %q missing %q", out, fragment)
		}
	}
}

func TestCLIConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("output %q missing validation result", out)
	}
}

func TestCLIVideosListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.store.EnsureChannel(context.Background(), "Science Shorts", ""); err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	out, _, err := runCLI(t, env.configPath, "videos", "list")
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	if !strings.Contains(out, "No videos found") {
		t.Fatalf("output %q missing empty message", out)
	}
}
