package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
relay:
  url: wss://relay.example.com/ws
  dial_timeout: 10s
database:
  postgres_dsn: postgres://vp:vp@localhost:5432/voterpulse
sentiment:
  primary:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  fallback:
    - name: lexicon
  timeout: 5s
keywords:
  bjp: [bjp, modi]
  tmc: [tmc, mamata]
  fuzzy: true
panel:
  buffer_size: 50
  auto_save: true
  restart_pause: 500ms
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Relay.URL != "wss://relay.example.com/ws" {
		t.Errorf("relay.url = %q", cfg.Relay.URL)
	}
	if cfg.Relay.DialTimeout.Std() != 10*time.Second {
		t.Errorf("dial_timeout = %v", cfg.Relay.DialTimeout.Std())
	}
	if cfg.Sentiment.Primary.Name != "openai" || cfg.Sentiment.Primary.Model != "gpt-4o-mini" {
		t.Errorf("primary = %+v", cfg.Sentiment.Primary)
	}
	if len(cfg.Sentiment.Fallback) != 1 || cfg.Sentiment.Fallback[0].Name != "lexicon" {
		t.Errorf("fallback = %+v", cfg.Sentiment.Fallback)
	}
	if !cfg.Keywords.Fuzzy || len(cfg.Keywords.BJP) != 2 {
		t.Errorf("keywords = %+v", cfg.Keywords)
	}
	if !cfg.Panel.AutoSave || cfg.Panel.RestartPause.Std() != 500*time.Millisecond {
		t.Errorf("panel = %+v", cfg.Panel)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("VP_RELAY_URL", "wss://relay.example.com/ws")
	t.Setenv("VP_API_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
relay:
  url: ${VP_RELAY_URL}
sentiment:
  primary:
    name: openai
    api_key: $VP_API_KEY
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.URL != "wss://relay.example.com/ws" {
		t.Errorf("relay.url = %q, want expanded value", cfg.Relay.URL)
	}
	if cfg.Sentiment.Primary.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want expanded value", cfg.Sentiment.Primary.APIKey)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
relay:
  url: ws://localhost/ws
  dail_timeout: 10s
`))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoadFromReader_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("relay: [unclosed"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Relay:    RelayConfig{URL: "wss://relay.example.com/ws"},
			Database: DatabaseConfig{PostgresDSN: "postgres://localhost/vp"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "minimal valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing relay url",
			mutate:  func(c *Config) { c.Relay.URL = "" },
			wantErr: "relay.url is required",
		},
		{
			name:    "http scheme rejected",
			mutate:  func(c *Config) { c.Relay.URL = "https://relay.example.com/ws" },
			wantErr: "must be ws or wss",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "tls without key file",
			mutate:  func(c *Config) { c.Server.TLS = &TLSConfig{CertFile: "cert.pem"} },
			wantErr: "server.tls.key_file is required",
		},
		{
			name:    "negative dial timeout",
			mutate:  func(c *Config) { c.Relay.DialTimeout = Duration(-time.Second) },
			wantErr: "relay.dial_timeout",
		},
		{
			name:    "openai without api key",
			mutate:  func(c *Config) { c.Sentiment.Primary = EngineEntry{Name: "openai"} },
			wantErr: "sentiment.primary.api_key is required",
		},
		{
			name:    "anyllm without provider",
			mutate:  func(c *Config) { c.Sentiment.Primary = EngineEntry{Name: "anyllm", Model: "claude-sonnet-4-5"} },
			wantErr: "sentiment.primary.provider is required",
		},
		{
			name: "anyllm without model",
			mutate: func(c *Config) {
				c.Sentiment.Primary = EngineEntry{Name: "anyllm", Provider: "anthropic"}
			},
			wantErr: "sentiment.primary.model is required",
		},
		{
			name: "fallback entry validated too",
			mutate: func(c *Config) {
				c.Sentiment.Primary = EngineEntry{Name: "lexicon"}
				c.Sentiment.Fallback = []EngineEntry{{Name: "openai"}}
			},
			wantErr: "sentiment.fallback[0].api_key",
		},
		{
			name: "fallback without primary",
			mutate: func(c *Config) {
				c.Sentiment.Fallback = []EngineEntry{{Name: "lexicon"}}
			},
			wantErr: "sentiment.fallback is set but sentiment.primary is not",
		},
		{
			name:    "empty bjp keyword",
			mutate:  func(c *Config) { c.Keywords.BJP = []string{"bjp", "  "} },
			wantErr: "keywords.bjp contains an empty keyword",
		},
		{
			name:    "negative buffer size",
			mutate:  func(c *Config) { c.Panel.BufferSize = -1 },
			wantErr: "panel.buffer_size",
		},
		{
			name: "auto save without dsn",
			mutate: func(c *Config) {
				c.Panel.AutoSave = true
				c.Database.PostgresDSN = ""
			},
			wantErr: "panel.auto_save requires database.postgres_dsn",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsMultipleFailures(t *testing.T) {
	t.Parallel()

	err := Validate(&Config{
		Server: ServerConfig{LogLevel: "verbose"},
		Panel:  PanelConfig{BufferSize: -1},
	})
	if err == nil {
		t.Fatal("expected joined error")
	}
	for _, want := range []string{"server.log_level", "relay.url is required", "panel.buffer_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}
