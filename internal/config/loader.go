package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidEngineNames lists known sentiment engine names. Used by [Validate] to
// warn about unrecognised names, which may be typos or third-party engines
// registered at runtime.
var ValidEngineNames = []string{"openai", "anyllm", "lexicon"}

// ValidProviderNames lists known upstream providers for the anyllm engine.
var ValidProviderNames = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"}

// Load reads the YAML configuration file at path, expands $VAR and ${VAR}
// environment references, and returns a validated [Config]. Expansion lets
// secrets like API keys and the database DSN stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Relay
	if cfg.Relay.URL == "" {
		errs = append(errs, errors.New("relay.url is required"))
	} else if u, err := url.Parse(cfg.Relay.URL); err != nil {
		errs = append(errs, fmt.Errorf("relay.url %q is not a valid URL: %w", cfg.Relay.URL, err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("relay.url scheme %q is invalid; must be ws or wss", u.Scheme))
	}
	if cfg.Relay.DialTimeout < 0 {
		errs = append(errs, errors.New("relay.dial_timeout must not be negative"))
	}

	// Database availability warning only: the panel degrades to view-only.
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; transcripts will not be archived and history will be unavailable")
	}

	// Sentiment engines
	validateEngineEntry("sentiment.primary", cfg.Sentiment.Primary, &errs)
	for i, entry := range cfg.Sentiment.Fallback {
		validateEngineEntry(fmt.Sprintf("sentiment.fallback[%d]", i), entry, &errs)
	}
	if cfg.Sentiment.Primary.Name == "" && len(cfg.Sentiment.Fallback) > 0 {
		errs = append(errs, errors.New("sentiment.fallback is set but sentiment.primary is not"))
	}
	if cfg.Sentiment.Primary.Name == "" {
		slog.Warn("no sentiment engine configured; lines without a sentiment will be tagged neutral")
	}
	if cfg.Sentiment.Timeout < 0 {
		errs = append(errs, errors.New("sentiment.timeout must not be negative"))
	}

	// Keywords
	for _, kw := range cfg.Keywords.BJP {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, errors.New("keywords.bjp contains an empty keyword"))
			break
		}
	}
	for _, kw := range cfg.Keywords.TMC {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, errors.New("keywords.tmc contains an empty keyword"))
			break
		}
	}

	// Panel
	if cfg.Panel.BufferSize < 0 {
		errs = append(errs, errors.New("panel.buffer_size must not be negative"))
	}
	if cfg.Panel.AutoSave && cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("panel.auto_save requires database.postgres_dsn"))
	}
	if cfg.Panel.RestartPause < 0 {
		errs = append(errs, errors.New("panel.restart_pause must not be negative"))
	}

	return errors.Join(errs...)
}

// validateEngineEntry checks one engine block and appends hard errors to errs.
// Unknown names only warn so third-party registrations keep working.
func validateEngineEntry(prefix string, entry EngineEntry, errs *[]error) {
	if entry.Name == "" {
		return
	}
	if !slices.Contains(ValidEngineNames, entry.Name) {
		slog.Warn("unknown sentiment engine name, may be a typo or third-party engine",
			"entry", prefix,
			"name", entry.Name,
			"known", ValidEngineNames,
		)
	}
	switch entry.Name {
	case "openai":
		if entry.APIKey == "" {
			*errs = append(*errs, fmt.Errorf("%s.api_key is required for the openai engine", prefix))
		}
	case "anyllm":
		if entry.Provider == "" {
			*errs = append(*errs, fmt.Errorf("%s.provider is required for the anyllm engine", prefix))
		} else if !slices.Contains(ValidProviderNames, entry.Provider) {
			slog.Warn("unknown anyllm provider name",
				"entry", prefix,
				"provider", entry.Provider,
				"known", ValidProviderNames,
			)
		}
		if entry.Model == "" {
			*errs = append(*errs, fmt.Errorf("%s.model is required for the anyllm engine", prefix))
		}
	}
}
