package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "sqlite3" {
		t.Errorf("Store.Driver = %q, want sqlite3", cfg.Store.Driver)
	}
	if cfg.Ingest.MaxTokenLength != 14 || cfg.Ingest.MinTokenCount != 3 {
		t.Errorf("ingest thresholds = (%d, %d), want (14, 3)",
			cfg.Ingest.MaxTokenLength, cfg.Ingest.MinTokenCount)
	}
	if cfg.Query.MaxTokenLength != 16 || cfg.Query.MinTokenCount != 1 {
		t.Errorf("query thresholds = (%d, %d), want (16, 1)",
			cfg.Query.MaxTokenLength, cfg.Query.MinTokenCount)
	}
	if cfg.Query.TopN != 100 {
		t.Errorf("Query.TopN = %d, want 100", cfg.Query.TopN)
	}
	if cfg.Ingest.FailurePolicy != "abort" {
		t.Errorf("Ingest.FailurePolicy = %q, want abort", cfg.Ingest.FailurePolicy)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Error("redis and kafka must be disabled by default")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  driver: postgres
  host: db.internal
  port: 5433
ingest:
  maxTokenLength: 20
  failurePolicy: continue
server:
  port: 9090
  readTimeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.Host != "db.internal" || cfg.Store.Port != 5433 {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Ingest.MaxTokenLength != 20 {
		t.Errorf("Ingest.MaxTokenLength = %d, want 20", cfg.Ingest.MaxTokenLength)
	}
	if cfg.Ingest.FailurePolicy != "continue" {
		t.Errorf("Ingest.FailurePolicy = %q, want continue", cfg.Ingest.FailurePolicy)
	}
	if cfg.Server.Port != 9090 || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	// Untouched sections keep their defaults.
	if cfg.Query.TopN != 100 {
		t.Errorf("Query.TopN = %d, want default 100", cfg.Query.TopN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LX_STORE_DRIVER", "postgres")
	t.Setenv("LX_STORE_HOST", "envhost")
	t.Setenv("LX_SERVER_PORT", "7777")
	t.Setenv("LX_INGEST_FAILURE_POLICY", "continue")
	t.Setenv("LX_KAFKA_BROKERS", "b1:9092,b2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.Host != "envhost" {
		t.Errorf("store overrides not applied: %+v", cfg.Store)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.Ingest.FailurePolicy != "continue" {
		t.Errorf("Ingest.FailurePolicy = %q, want continue", cfg.Ingest.FailurePolicy)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka override not applied: %+v", cfg.Kafka)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad driver", map[string]string{"LX_STORE_DRIVER": "mysql"}},
		{"bad policy", map[string]string{"LX_INGEST_FAILURE_POLICY": "retry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("Load() accepted invalid configuration")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() accepted a missing config file")
	}
}

func TestStoreDSN(t *testing.T) {
	sqlite := StoreConfig{Driver: "sqlite3", Path: "data/idx.db"}
	if got := sqlite.DSN(); got != "data/idx.db" {
		t.Errorf("sqlite DSN = %q", got)
	}

	pg := StoreConfig{
		Driver: "postgres", Host: "h", Port: 5432,
		Database: "d", User: "u", Password: "p", SSLMode: "disable",
	}
	want := "host=h port=5432 user=u password=p dbname=d sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("postgres DSN = %q, want %q", got, want)
	}
}
