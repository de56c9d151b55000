package transcript

import (
	"context"
	"time"
)

// Query limit bounds. A caller cannot request unbounded results: limits are
// clamped into [1, MaxQueryLimit] and a zero limit falls back to
// DefaultQueryLimit.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// QueryOptions filters a [Store.Query] call.
//
// Start and End bound Record.CreatedAt, both inclusive. They deliberately do
// not touch TranscriptTime, which is a display string: query order and
// display order can diverge and callers must not conflate the two.
type QueryOptions struct {
	// Channel restricts results to a single channel name. Empty matches all.
	Channel string

	// Start is the inclusive lower CreatedAt bound. Nil means unbounded.
	Start *time.Time

	// End is the inclusive upper CreatedAt bound. Nil means unbounded.
	End *time.Time

	// Limit caps the result size. Clamped into [1, MaxQueryLimit];
	// zero selects DefaultQueryLimit.
	Limit int
}

// ClampedLimit returns the effective limit after applying the bounds.
func (o QueryOptions) ClampedLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultQueryLimit
	case o.Limit > MaxQueryLimit:
		return MaxQueryLimit
	}
	return o.Limit
}

// Stats is a point-in-time aggregate snapshot over the (optionally
// channel-filtered) full record set. It carries no incremental-maintenance
// guarantee: two calls may disagree as writes land in between.
type Stats struct {
	Total       int64 `json:"total"`
	BJPMentions int64 `json:"bjp_mentions"`
	TMCMentions int64 `json:"tmc_mentions"`
	Positive    int64 `json:"positive"`
	Negative    int64 `json:"negative"`
	Neutral     int64 `json:"neutral"`
}

// Store persists tagged transcript lines and serves read-back queries.
//
// Save and SaveBatch enrich lines through the tagger before writing. Neither
// provides at-least-once delivery: a failed save is reported and not retried;
// callers needing durability retry themselves. Read queries return
// (nil, err) on failure — nil data means "unavailable", not "empty".
//
// Implementations must be safe for concurrent use; concurrent writers rely on
// the backing database's own concurrency control (appends, never updates).
type Store interface {
	// Save tags line (keyword mentions are always recomputed and OR-ed with
	// any source-supplied flags; sentiment is engine-tagged only when the
	// line carries none), builds a Record, and performs a single insert.
	Save(ctx context.Context, channelName, channelID string, line Line) error

	// SaveBatch tags every line independently and concurrently, then
	// performs one all-or-nothing batch insert. It returns the number of
	// records written: len(lines) on success, 0 on failure — never a
	// partial count.
	SaveBatch(ctx context.Context, channelName, channelID string, lines []Line) (int, error)

	// Query returns records matching opts, newest first by CreatedAt.
	Query(ctx context.Context, opts QueryOptions) ([]Record, error)

	// QueryPolitical is Query restricted to records where at least one
	// mention flag is true (bjp_mention OR tmc_mention).
	QueryPolitical(ctx context.Context, channel string, limit int) ([]Record, error)

	// Stats computes aggregate counters over the record set, optionally
	// filtered to a single channel.
	Stats(ctx context.Context, channel string) (Stats, error)
}
