package relay

import "github.com/anikdutta/voterpulse/internal/transcript"

// Wire message types. All frames are JSON text messages wrapped in an
// [envelope]; Type selects which payload fields are meaningful.
const (
	// client → server
	msgStartTranscription = "start_transcription"
	msgStopTranscription  = "stop_transcription"

	// server → client
	msgTranscript         = "transcript"
	msgTranscriptionState = "transcription_status"
	msgTranscriptionError = "transcription_error"
	msgError              = "error"
)

// envelope is the single frame shape exchanged with the relay server.
type envelope struct {
	Type string `json:"type"`

	// start_transcription / stop_transcription / transcription_error
	ChannelID string `json:"channel_id,omitempty"`

	// start_transcription
	FilterPolitical bool `json:"filter_political,omitempty"`

	// transcript
	Line *transcript.Line `json:"line,omitempty"`

	// transcription_status
	Status *transcript.Status `json:"status,omitempty"`

	// transcription_error
	Error string `json:"error,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}
