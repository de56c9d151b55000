package transcript

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/anikdutta/voterpulse/internal/observe"
)

// Schema is the SQL DDL for the transcripts table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcripts (
    id              BIGSERIAL PRIMARY KEY,
    channel_name    TEXT NOT NULL,
    channel_id      TEXT NOT NULL DEFAULT '',
    transcript_time TEXT NOT NULL DEFAULT '',
    bengali_text    TEXT NOT NULL DEFAULT '',
    hindi_text      TEXT NOT NULL DEFAULT '',
    english_text    TEXT NOT NULL DEFAULT '',
    sentiment       TEXT NOT NULL DEFAULT 'neutral',
    bjp_mention     BOOLEAN NOT NULL DEFAULT FALSE,
    tmc_mention     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcripts_channel_created ON transcripts(channel_name, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transcripts_political ON transcripts(created_at DESC) WHERE bjp_mention OR tmc_mention;
`

// recordColumns is the SELECT column list shared by the read queries,
// matching the scan order in scanRecords.
const recordColumns = `channel_name, channel_id, transcript_time,
       bengali_text, hindi_text, english_text,
       sentiment, bjp_mention, tmc_mention, created_at`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LineTagger enriches raw text with sentiment and mention flags.
// Satisfied by *tagger.Tagger.
type LineTagger interface {
	// Tag returns fully populated tags; it never fails.
	Tag(ctx context.Context, text string) Tags

	// Detect runs keyword-only mention detection.
	Detect(text string) (bjp, tmc bool)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Records are
// append-only; the store never issues UPDATE or DELETE.
type PostgresStore struct {
	db      DB
	tagger  LineTagger
	metrics *observe.Metrics
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// StoreOption is a functional option for [NewPostgresStore].
type StoreOption func(*PostgresStore)

// WithStoreMetrics records save latency and record counts on m.
func WithStoreMetrics(m *observe.Metrics) StoreOption {
	return func(s *PostgresStore) { s.metrics = m }
}

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresStore(db DB, tagger LineTagger, opts ...StoreOption) *PostgresStore {
	s := &PostgresStore{db: db, tagger: tagger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Migrate executes the [Schema] DDL, creating the transcripts table and
// indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("transcript: migrate: %w", err)
	}
	return nil
}

// buildRecord enriches line into a persistable Record. Keyword mentions are
// always recomputed and OR-ed with any source-supplied flags; the sentiment
// engine runs only when the line carries no valid sentiment yet.
func (s *PostgresStore) buildRecord(ctx context.Context, channelName, channelID string, line Line) Record {
	text := strings.TrimSpace(strings.Join([]string{line.Bengali, line.Hindi, line.English}, " "))

	var (
		sent     Sentiment
		bjp, tmc bool
	)
	if line.Sentiment.IsValid() {
		sent = line.Sentiment
		bjp, tmc = s.tagger.Detect(text)
	} else {
		tags := s.tagger.Tag(ctx, text)
		sent = tags.Sentiment
		bjp, tmc = tags.BJPMention, tags.TMCMention
	}
	if line.BJPMention != nil {
		bjp = bjp || *line.BJPMention
	}
	if line.TMCMention != nil {
		tmc = tmc || *line.TMCMention
	}

	return Record{
		ChannelName:    channelName,
		ChannelID:      channelID,
		TranscriptTime: line.Timestamp,
		BengaliText:    line.Bengali,
		HindiText:      line.Hindi,
		EnglishText:    line.English,
		Sentiment:      sent,
		BJPMention:     bjp,
		TMCMention:     tmc,
	}
}

// Save implements [Store]. The insert is awaited; failure is reported to the
// caller and never retried here.
func (s *PostgresStore) Save(ctx context.Context, channelName, channelID string, line Line) error {
	rec := s.buildRecord(ctx, channelName, channelID, line)

	const query = `
		INSERT INTO transcripts (
			channel_name, channel_id, transcript_time,
			bengali_text, hindi_text, english_text,
			sentiment, bjp_mention, tmc_mention
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`

	start := time.Now()
	err := s.db.QueryRow(ctx, query,
		rec.ChannelName, rec.ChannelID, rec.TranscriptTime,
		rec.BengaliText, rec.HindiText, rec.EnglishText,
		rec.Sentiment, rec.BJPMention, rec.TMCMention,
	).Scan(&rec.CreatedAt)
	s.observeSave(ctx, "save", start, err, 1)
	if err != nil {
		return fmt.Errorf("transcript: save %q: %w", channelName, err)
	}
	return nil
}

// SaveBatch implements [Store]. Lines are tagged independently and
// concurrently (tagging cannot fail; the group bounds concurrency), then
// written in one multi-row INSERT so the batch is all-or-nothing at the
// storage layer: the returned count is len(lines) or 0, never partial.
func (s *PostgresStore) SaveBatch(ctx context.Context, channelName, channelID string, lines []Line) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	records := make([]Record, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, line := range lines {
		g.Go(func() error {
			records[i] = s.buildRecord(gctx, channelName, channelID, line)
			return nil
		})
	}
	// Tagging never fails by contract; Wait only propagates ctx errors.
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("transcript: save batch: %w", err)
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO transcripts (
		channel_name, channel_id, transcript_time,
		bengali_text, hindi_text, english_text,
		sentiment, bjp_mention, tmc_mention
	) VALUES `)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args,
			rec.ChannelName, rec.ChannelID, rec.TranscriptTime,
			rec.BengaliText, rec.HindiText, rec.EnglishText,
			rec.Sentiment, rec.BJPMention, rec.TMCMention,
		)
	}

	start := time.Now()
	_, err := s.db.Exec(ctx, sb.String(), args...)
	s.observeSave(ctx, "save_batch", start, err, int64(len(records)))
	if err != nil {
		return 0, fmt.Errorf("transcript: save batch of %d: %w", len(records), err)
	}
	return len(records), nil
}

// Query implements [Store]. Results are newest first by created_at; both
// date bounds are inclusive and the limit is clamped.
func (s *PostgresStore) Query(ctx context.Context, opts QueryOptions) ([]Record, error) {
	var (
		conds []string
		args  []any
	)
	if opts.Channel != "" {
		args = append(args, opts.Channel)
		conds = append(conds, fmt.Sprintf("channel_name = $%d", len(args)))
	}
	if opts.Start != nil {
		args = append(args, *opts.Start)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if opts.End != nil {
		args = append(args, *opts.End)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := "SELECT " + recordColumns + " FROM transcripts"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, opts.ClampedLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript: query: %w", err)
	}
	return scanRecords(rows)
}

// QueryPolitical implements [Store]: records where at least one mention flag
// is true (OR, never AND).
func (s *PostgresStore) QueryPolitical(ctx context.Context, channel string, limit int) ([]Record, error) {
	var (
		conds = []string{"(bjp_mention OR tmc_mention)"}
		args  []any
	)
	if channel != "" {
		args = append(args, channel)
		conds = append(conds, fmt.Sprintf("channel_name = $%d", len(args)))
	}
	args = append(args, QueryOptions{Limit: limit}.ClampedLimit())

	query := "SELECT " + recordColumns + " FROM transcripts WHERE " +
		strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript: query political: %w", err)
	}
	return scanRecords(rows)
}

// Stats implements [Store]: a point-in-time aggregate snapshot.
func (s *PostgresStore) Stats(ctx context.Context, channel string) (Stats, error) {
	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE bjp_mention),
		       count(*) FILTER (WHERE tmc_mention),
		       count(*) FILTER (WHERE sentiment = 'positive'),
		       count(*) FILTER (WHERE sentiment = 'negative'),
		       count(*) FILTER (WHERE sentiment = 'neutral')
		FROM transcripts`
	var args []any
	if channel != "" {
		query += " WHERE channel_name = $1"
		args = append(args, channel)
	}

	var st Stats
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&st.Total, &st.BJPMentions, &st.TMCMentions,
		&st.Positive, &st.Negative, &st.Neutral,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("transcript: stats: %w", err)
	}
	return st, nil
}

// scanRecords drains rows into a Record slice.
func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		err := rows.Scan(
			&rec.ChannelName, &rec.ChannelID, &rec.TranscriptTime,
			&rec.BengaliText, &rec.HindiText, &rec.EnglishText,
			&rec.Sentiment, &rec.BJPMention, &rec.TMCMention, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("transcript: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: rows: %w", err)
	}
	return out, nil
}

// observeSave records save metrics when a Metrics instance is attached.
func (s *PostgresStore) observeSave(ctx context.Context, op string, start time.Time, err error, n int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.SaveDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", op)))
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.SavedRecords.Add(ctx, n,
		metric.WithAttributes(attribute.String("status", status)))
}
