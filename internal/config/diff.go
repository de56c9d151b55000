package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// sets RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// KeywordsChanged is true when the BJP or TMC keyword lists or the
	// fuzzy flag differ. The tagger can swap keyword sets live.
	KeywordsChanged bool

	// AutoSaveChanged is true when panel.auto_save was toggled.
	AutoSaveChanged bool
	NewAutoSave     bool

	// RestartPauseChanged is true when the filter-restart pause differs.
	RestartPauseChanged bool
	NewRestartPause     Duration

	// RestartRequired is true when relay, database, sentiment, or server
	// settings changed. These are wired at startup and cannot be swapped
	// on a running process.
	RestartRequired bool
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.KeywordsChanged && !d.AutoSaveChanged &&
		!d.RestartPauseChanged && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Keywords.BJP, new.Keywords.BJP) ||
		!slices.Equal(old.Keywords.TMC, new.Keywords.TMC) ||
		old.Keywords.Fuzzy != new.Keywords.Fuzzy {
		d.KeywordsChanged = true
	}

	if old.Panel.AutoSave != new.Panel.AutoSave {
		d.AutoSaveChanged = true
		d.NewAutoSave = new.Panel.AutoSave
	}
	if old.Panel.RestartPause != new.Panel.RestartPause {
		d.RestartPauseChanged = true
		d.NewRestartPause = new.Panel.RestartPause
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) ||
		old.Relay != new.Relay ||
		old.Database != new.Database ||
		!sentimentEqual(old.Sentiment, new.Sentiment) ||
		old.Panel.BufferSize != new.Panel.BufferSize {
		d.RestartRequired = true
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sentimentEqual(a, b SentimentConfig) bool {
	return a.Primary == b.Primary &&
		a.Timeout == b.Timeout &&
		slices.Equal(a.Fallback, b.Fallback)
}
