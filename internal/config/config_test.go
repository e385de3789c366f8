package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Env != EnvDevelopment || cfg.Server.BasePath != "/v1" || cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestFromYAMLValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad env", "env: staging\n", "config.env"},
		{"relative base path", "server:\n  base_path: v1\n", "base_path"},
		{"temperature", "generation:\n  temperature: 1.5\n", "temperature"},
		{"whatsapp without token", "whatsapp:\n  enabled: true\n", "verify_token"},
		{"webhook without url", "webhooks:\n  - events: [TASK_CREATED]\n", "webhooks[0].url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadLayersFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studioflow.yaml")
	data := "env: production\nserver:\n  addr: \":4000\"\ntelegram:\n  chat_ids: [\"1\"]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITHUB_TOKEN", "ghp_from_env")
	t.Setenv("STUDIOFLOW_SERVER_ADDR", ":5000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.Server.Addr != ":5000" {
		t.Fatalf("environment should win over the file, got %q", cfg.Server.Addr)
	}
	if cfg.GitHub.Token != "ghp_from_env" {
		t.Fatalf("well-known variable not bound: %q", cfg.GitHub.Token)
	}
	if len(cfg.Telegram.ChatIDs) != 1 || cfg.Telegram.ChatIDs[0] != "1" {
		t.Fatalf("chat ids %v", cfg.Telegram.ChatIDs)
	}
}

func TestLoadSplitsChatIDsFromEnvironment(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_IDS", "10, 20,,30")
	cfg, err := Load(writeEmpty(t))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cfg.Telegram.ChatIDs, "|") != "10|20|30" {
		t.Fatalf("chat ids %v", cfg.Telegram.ChatIDs)
	}
}

func writeEmpty(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Generation.APIKey = "sk-ant-0123456789"
	cfg.Telegram.BotToken = "short"
	cfg.Webhooks = []WebhookConfig{{URL: "http://hook", Secret: "hook-secret-value"}}
	r := cfg.Redacted()
	if r.Generation.APIKey != "sk-a...6789" || r.Telegram.BotToken != "****" || r.Webhooks[0].Secret != "hook...alue" {
		t.Fatalf("unexpected redaction %+v", r)
	}
	if cfg.Webhooks[0].Secret != "hook-secret-value" {
		t.Fatal("redaction mutated the original")
	}
}
