package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Collections: []CollectionConfig{
			{Name: "profiles", Fields: []FieldConfig{{Name: "city", Type: "tag"}}},
		},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small", Dimensions: 1536},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Cache.TTLSec != 300 {
		t.Errorf("cache.ttl_sec = %d, want 300", cfg.Cache.TTLSec)
	}
	if cfg.Index.Driver != IndexDriverRedis {
		t.Errorf("index.driver = %q, want %q", cfg.Index.Driver, IndexDriverRedis)
	}
	if cfg.Embedding.Provider != ProviderOpenAI {
		t.Errorf("embedding.provider = %q, want %q", cfg.Embedding.Provider, ProviderOpenAI)
	}
	if cfg.Match.DefaultPerPage != 10 || cfg.Match.MaxPerPage != 50 {
		t.Errorf("match = %+v, want 10/50", cfg.Match)
	}
	if cfg.Generator.MaxTokens != 160 {
		t.Errorf("generator.max_tokens = %d, want 160", cfg.Generator.MaxTokens)
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"no addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"bad driver", func(c *Config) { c.Index.Driver = "faiss" }, "index.driver"},
		{"per page", func(c *Config) { c.Match.DefaultPerPage = 100 }, "default_per_page"},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"openai no model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"clip no url", func(c *Config) { c.Embedding.Provider = ProviderCLIP }, "embedding.base_url"},
		{"no dims", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"generator no model", func(c *Config) { c.Generator.Enabled = true }, "generator.model"},
		{"no collections", func(c *Config) { c.Collections = nil }, "at least one collection"},
		{"unnamed collection", func(c *Config) { c.Collections[0].Name = "" }, "name is required"},
		{"duplicate collection", func(c *Config) {
			c.Collections = append(c.Collections, CollectionConfig{Name: "profiles"})
		}, "declared twice"},
		{"bad field type", func(c *Config) { c.Collections[0].Fields[0].Type = "geo" }, "tag or numeric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("VECMATCH_TEST_KEY", "sk-test")

	doc := []byte(`
http:
  port: ${VECMATCH_TEST_PORT:-9090}
database:
  addrs: ["localhost:6379"]
collections:
  - name: profiles
    fields:
      - {name: age, type: numeric}
embedding:
  api_key: ${VECMATCH_TEST_KEY}
  model: text-embedding-3-small
  dimensions: 1536
`)
	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want sk-test", cfg.Embedding.APIKey)
	}
	if cfg.Cache.TTLSec != 300 {
		t.Errorf("defaults not applied: ttl = %d", cfg.Cache.TTLSec)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\n")); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VECMATCH_DOTENV_A=from-file\nVECMATCH_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VECMATCH_DOTENV_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("VECMATCH_DOTENV_A") })

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("VECMATCH_DOTENV_A"); got != "from-file" {
		t.Errorf("A = %q, want from-file", got)
	}
	if got := os.Getenv("VECMATCH_DOTENV_B"); got != "from-env" {
		t.Errorf("B = %q, existing env must win", got)
	}

	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file must be ignored, got %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VECMATCH_SET", "value")

	got := string(expandEnvVars([]byte("a=${VECMATCH_SET} b=${VECMATCH_UNSET:-dflt} c=${VECMATCH_UNSET}")))
	want := "a=value b=dflt c="
	if got != want {
		t.Errorf("expandEnvVars = %q, want %q", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
