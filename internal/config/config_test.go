// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

llm:
  base_url: "http://localhost:11434"
  model: "llama3.1"

workers:
  pool_size: 3
  poll_interval: "250ms"

chat:
  memory_window: 30
  session_ttl: "24h"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434" || cfg.LLM.Model != "llama3.1" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Workers.PoolSize != 3 {
		t.Errorf("PoolSize = %d", cfg.Workers.PoolSize)
	}
	if cfg.Workers.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Workers.PollInterval)
	}
	if cfg.Chat.MemoryWindow != 30 {
		t.Errorf("MemoryWindow = %d", cfg.Chat.MemoryWindow)
	}
	if cfg.Chat.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.Chat.SessionTTL)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("SOLACE_TEST_DB", "/tmp/solace-test.db")
	t.Setenv("SOLACE_TEST_MODEL", "test-model")

	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "${SOLACE_TEST_DB}"

llm:
  base_url: "http://localhost:11434"
  model: "${SOLACE_TEST_MODEL}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/solace-test.db" {
		t.Errorf("Database.Path = %q, env var not expanded", cfg.Database.Path)
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("LLM.Model = %q, env var not expanded", cfg.LLM.Model)
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "${SOLACE_DEFINITELY_UNSET_VAR}"

llm:
  base_url: "http://localhost:11434"
  model: "llama3.1"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want database.path mention", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./test.db"

llm:
  base_url: "http://localhost:11434"
  model: "llama3.1"

workers:
  poll_interval: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "poll_interval") {
		t.Errorf("error = %v, want poll_interval mention", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing http addr",
			content: `
database:
  path: "./test.db"
llm:
  base_url: "http://localhost:11434"
  model: "llama3.1"
`,
			want: "server.http_addr",
		},
		{
			name: "missing llm base url",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
llm:
  model: "llama3.1"
`,
			want: "llm.base_url",
		},
		{
			name: "missing model",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
llm:
  base_url: "http://localhost:11434"
`,
			want: "llm.model",
		},
		{
			name: "negative pool size",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
llm:
  base_url: "http://localhost:11434"
  model: "llama3.1"
workers:
  pool_size: -1
`,
			want: "workers.pool_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q mention", err, tt.want)
			}
		})
	}
}
