// Package transcript defines the core data types of the live transcript
// pipeline — the in-flight [Line] delivered by the relay, the ephemeral
// session [Status], and the persisted [Record] — together with the [Store]
// interface for durable transcript storage.
package transcript

import "time"

// Sentiment is the polarity label assigned to a transcript line.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// IsValid reports whether s is a recognised sentiment label.
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Line is a single utterance window received from the live transcription
// source. The three language fields carry the same utterance in each
// language; any of them may be empty.
//
// Timestamp is a locale-formatted clock time intended for display only.
// It is not sortable — readers that need a stable order must use the
// persisted [Record.CreatedAt] instead.
type Line struct {
	// ID is an opaque unique identifier assigned at receipt time.
	ID string `json:"id"`

	// Timestamp is the human-readable capture time (e.g. "4:05:12 PM").
	Timestamp string `json:"timestamp"`

	Bengali string `json:"bengali"`
	Hindi   string `json:"hindi"`
	English string `json:"english"`

	// Sentiment is empty until the tagger has run.
	Sentiment Sentiment `json:"sentiment,omitempty"`

	// BJPMention and TMCMention are nil until derived by the tagger or
	// forwarded by the source.
	BJPMention *bool `json:"bjp_mention,omitempty"`
	TMCMention *bool `json:"tmc_mention,omitempty"`
}

// Text returns the first non-empty language field, preferring English.
// Used for logging and client-side search fallbacks.
func (l Line) Text() string {
	if l.English != "" {
		return l.English
	}
	if l.Hindi != "" {
		return l.Hindi
	}
	return l.Bengali
}

// StatusKind enumerates the lifecycle states a relay transcription session
// reports while running.
type StatusKind string

const (
	StatusGettingStream    StatusKind = "getting_stream"
	StatusStreamFound      StatusKind = "stream_found"
	StatusCapturing        StatusKind = "capturing"
	StatusTranscribing     StatusKind = "transcribing"
	StatusChunkError       StatusKind = "chunk_error"
	StatusRefreshingStream StatusKind = "refreshing_stream"
	StatusStreamRefreshed  StatusKind = "stream_refreshed"
	StatusStreamLost       StatusKind = "stream_lost"
	StatusError            StatusKind = "error"
	StatusStopped          StatusKind = "stopped"
	StatusAlreadyRunning   StatusKind = "already_running"
)

// IsValid reports whether k is a recognised status kind.
func (k StatusKind) IsValid() bool {
	switch k {
	case StatusGettingStream, StatusStreamFound, StatusCapturing,
		StatusTranscribing, StatusChunkError, StatusRefreshingStream,
		StatusStreamRefreshed, StatusStreamLost, StatusError,
		StatusStopped, StatusAlreadyRunning:
		return true
	}
	return false
}

// Status is an ephemeral session lifecycle signal emitted by the relay.
// It is consumed by UI subscribers only and is never persisted; there is no
// replay guarantee for subscribers registered after emission.
type Status struct {
	ChannelID string     `json:"channel_id"`
	Kind      StatusKind `json:"status"`
	Message   string     `json:"message,omitempty"`
}

// Tags is a fully populated tagging result for one text: a sentiment label,
// the [0, 1] confidence-style score, and one mention flag per tracked party.
// Produced by the tagger; never partial.
type Tags struct {
	Sentiment  Sentiment
	Score      float64
	BJPMention bool
	TMCMention bool
}

// Record is the persisted form of a [Line]. Records are append-only: once
// written they are never updated or deleted by this subsystem. The store
// exclusively owns write access; readers may run concurrently.
type Record struct {
	ChannelName string `json:"channel_name"`

	// ChannelID may be empty when the caller only knows the display name.
	ChannelID string `json:"channel_id,omitempty"`

	// TranscriptTime is copied verbatim from [Line.Timestamp]. Display only.
	TranscriptTime string `json:"transcript_time"`

	BengaliText string `json:"bengali_text"`
	HindiText   string `json:"hindi_text"`
	EnglishText string `json:"english_text"`

	// Sentiment is always populated at persistence time; analysis failure
	// defaults it to neutral.
	Sentiment Sentiment `json:"sentiment"`

	// Mention flags are the OR of source-supplied flags and freshly
	// computed keyword detection.
	BJPMention bool `json:"bjp_mention"`
	TMCMention bool `json:"tmc_mention"`

	// CreatedAt is the store-assigned insertion timestamp. This — not
	// TranscriptTime — is the field range queries and ordering use.
	CreatedAt time.Time `json:"created_at"`
}
