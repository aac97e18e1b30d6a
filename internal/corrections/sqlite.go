package corrections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/pricematch/internal/debug"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_corrections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	unit TEXT NOT NULL,
	code TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	previous_code TEXT NOT NULL DEFAULT '',
	previous_description TEXT NOT NULL DEFAULT '',
	frequency INTEGER NOT NULL DEFAULT 1,
	last_used INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(text, unit, code)
);
CREATE INDEX IF NOT EXISTS idx_corrections_lookup ON match_corrections(text, unit);
CREATE TABLE IF NOT EXISTS ai_feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	suggested_code TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	rationale TEXT NOT NULL DEFAULT '',
	accepted INTEGER NOT NULL DEFAULT 0,
	user_chosen_code TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

const correctionColumns = `text, unit, code, description, previous_code, previous_description, frequency, last_used, created_at`

// SQLiteStore keeps corrections in a local SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	clock func() time.Time
}

// SQLiteOption configures a SQLiteStore
type SQLiteOption func(*SQLiteStore)

// WithClock injects the time source used for last_used/created_at.
func WithClock(clock func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) { s.clock = clock }
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, perrors.NewStoreError("open", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, perrors.NewStoreError("open", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, perrors.NewStoreError("migrate", err)
	}

	s := &SQLiteStore{db: db, path: path, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = defaultClock(s.clock)
	debug.LogStore("opened correction store %s", path)
	return s, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Lookup returns the most frequent, most recently used correction for the
// normalized (text, unit) with at least minFrequency uses, or nil.
func (s *SQLiteStore) Lookup(ctx context.Context, text, unit string, minFrequency int) (*types.LearnedCorrection, error) {
	nt, nu := NormalizeKey(text, unit)
	if nt == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+correctionColumns+`
		FROM match_corrections
		WHERE text = ? AND unit = ? AND frequency >= ?
		ORDER BY frequency DESC, last_used DESC
		LIMIT 1`, nt, nu, minFrequency)

	c, err := scanCorrection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, perrors.NewStoreError("lookup", err)
	}
	return c, nil
}

// Record upserts the correction: a new (text, unit, code) starts at
// frequency 1, a repeat increments frequency and refreshes last_used.
func (s *SQLiteStore) Record(ctx context.Context, ev types.CorrectionEvent) (RecordOutcome, error) {
	if err := validateEvent(ev); err != nil {
		return "", perrors.NewStoreError("record", err)
	}
	nt, nu := NormalizeKey(ev.Text, ev.Unit)
	now := s.clock().UnixNano()

	var frequency int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO match_corrections (`+correctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(text, unit, code) DO UPDATE SET
			frequency = frequency + 1,
			last_used = excluded.last_used,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE description END
		RETURNING frequency`,
		nt, nu, ev.ChosenCode, ev.ChosenDescription, ev.PreviousCode, ev.PreviousDescription, now, now,
	).Scan(&frequency)
	if err != nil {
		return "", perrors.NewStoreError("record", err)
	}

	outcome := OutcomeUpdated
	if frequency == 1 {
		outcome = OutcomeAdded
	}
	debug.LogLearn("%s correction %q [%s] -> %s (frequency %d)", outcome, nt, nu, ev.ChosenCode, frequency)
	return outcome, nil
}

// RecordAIFeedback stores how a reviewer reacted to a semantic suggestion
func (s *SQLiteStore) RecordAIFeedback(ctx context.Context, fb types.AIFeedback) error {
	accepted := 0
	if fb.Accepted {
		accepted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_feedback (text, suggested_code, confidence, rationale, accepted, user_chosen_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.Text, fb.SuggestedCode, fb.Confidence, fb.Rationale, accepted, fb.UserChosenCode, s.clock().UnixNano())
	if err != nil {
		return perrors.NewStoreError("record_ai_feedback", err)
	}
	return nil
}

// Similar finds corrections whose text contains any word of at least three
// characters from text. Each code appears once.
func (s *SQLiteStore) Similar(ctx context.Context, text string, limit int) ([]types.LearnedCorrection, error) {
	if limit <= 0 {
		limit = 5
	}

	var out []types.LearnedCorrection
	seen := make(map[string]bool)
	for _, word := range similarWords(text) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+correctionColumns+`
			FROM match_corrections
			WHERE text LIKE ?
			ORDER BY frequency DESC, last_used DESC
			LIMIT ?`, "%"+word+"%", limit)
		if err != nil {
			return nil, perrors.NewStoreError("similar", err)
		}
		found, err := scanCorrections(rows)
		if err != nil {
			return nil, perrors.NewStoreError("similar", err)
		}
		for _, c := range found {
			if seen[c.Code] {
				continue
			}
			seen[c.Code] = true
			out = append(out, c)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Statistics reports totals, the most used corrections and AI feedback rates
func (s *SQLiteStore) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(frequency), 0) FROM match_corrections`,
	).Scan(&stats.TotalCorrections, &stats.TotalUses)
	if err != nil {
		return nil, perrors.NewStoreError("statistics", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+correctionColumns+`
		FROM match_corrections
		ORDER BY frequency DESC, last_used DESC
		LIMIT ?`, topCorrections)
	if err != nil {
		return nil, perrors.NewStoreError("statistics", err)
	}
	if stats.Top, err = scanCorrections(rows); err != nil {
		return nil, perrors.NewStoreError("statistics", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(accepted), 0), AVG(confidence) FROM ai_feedback`,
	).Scan(&stats.AIFeedback.TotalSuggestions, &stats.AIFeedback.Accepted, &avg)
	if err != nil {
		return nil, perrors.NewStoreError("statistics", err)
	}
	stats.AIFeedback.AvgConfidence = avg.Float64
	stats.AIFeedback.AcceptanceRate = acceptanceRate(stats.AIFeedback.Accepted, stats.AIFeedback.TotalSuggestions)
	return stats, nil
}

// Export returns every correction, most used first
func (s *SQLiteStore) Export(ctx context.Context) ([]types.LearnedCorrection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+correctionColumns+`
		FROM match_corrections
		ORDER BY frequency DESC, last_used DESC, id ASC`)
	if err != nil {
		return nil, perrors.NewStoreError("export", err)
	}
	out, err := scanCorrections(rows)
	if err != nil {
		return nil, perrors.NewStoreError("export", err)
	}
	return out, nil
}

// Clear deletes all corrections and AI feedback
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perrors.NewStoreError("clear", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM match_corrections`, `DELETE FROM ai_feedback`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return perrors.NewStoreError("clear", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return perrors.NewStoreError("clear", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCorrection(r rowScanner) (*types.LearnedCorrection, error) {
	var (
		c                   types.LearnedCorrection
		lastUsed, createdAt int64
	)
	err := r.Scan(&c.Text, &c.Unit, &c.Code, &c.Description, &c.PreviousCode, &c.PreviousDescription,
		&c.Frequency, &lastUsed, &createdAt)
	if err != nil {
		return nil, err
	}
	c.LastUsed = time.Unix(0, lastUsed).UTC()
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return &c, nil
}

func scanCorrections(rows *sql.Rows) ([]types.LearnedCorrection, error) {
	defer rows.Close()
	var out []types.LearnedCorrection
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return out, nil
}
