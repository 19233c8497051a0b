// Package postgres provides the Postgres-backed Store implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB is the slice of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.Store on a pgx connection pool. Every mutation is a
// single statement, so concurrency safety comes from Postgres itself.
type Store struct {
	db DB
}

// New connects a pool and pings it so a bad DSN fails at startup, not on the
// first shard.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool (primarily for testing).
func NewWithDB(db DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// EnsureSchema creates the collections if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			internal_id TEXT,
			country TEXT NOT NULL,
			league TEXT NOT NULL,
			team TEXT NOT NULL,
			match_date TIMESTAMPTZ,
			scraped_at TIMESTAMPTZ NOT NULL,
			processing_status TEXT NOT NULL,
			processing_attempts INT NOT NULL DEFAULT 0,
			scrape_id BIGINT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_status ON matches (processing_status)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_scrape_id ON matches (scrape_id)`,
		`CREATE TABLE IF NOT EXISTS match_details (
			match_id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			processing_status TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS match_h2h (
			match_id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS leagues (
			country TEXT NOT NULL,
			league TEXT NOT NULL,
			url TEXT,
			discovered_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (country, league)
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			kind TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const insertMatchSQL = `
INSERT INTO matches (
	match_id, internal_id, country, league, team, match_date,
	scraped_at, processing_status, processing_attempts, scrape_id, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,0),NOW())
ON CONFLICT (match_id) DO NOTHING`

// InsertMatches inserts records one statement at a time, counting rows the
// conflict clause let through. Duplicate ids affect zero rows instead of
// erroring; anything else aborts and propagates.
func (s *Store) InsertMatches(ctx context.Context, records []model.Match) (int, error) {
	inserted := 0
	for _, rec := range records {
		tag, err := s.db.Exec(ctx, insertMatchSQL,
			rec.MatchID, rec.InternalID, rec.Country, rec.League, rec.Team,
			rec.Date, rec.ScrapedAt, string(rec.Status), rec.Attempts, rec.ScrapeID,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert match %s: %w", rec.MatchID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const sampleScrapeIDSQL = `SELECT scrape_id FROM matches ORDER BY scraped_at ASC LIMIT 1`

// hasScrapeID samples one record for a populated scrape id. The sort
// fallback is collection-wide: data predating the scrape id field sorts
// entirely by scraped-at.
func (s *Store) hasScrapeID(ctx context.Context) (bool, error) {
	var sid *int64
	err := s.db.QueryRow(ctx, sampleScrapeIDSQL).Scan(&sid)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sample scrape id: %w", err)
	}
	return sid != nil && *sid > 0, nil
}

const selectMatchColumns = `
	match_id, internal_id, country, league, team, match_date,
	scraped_at, processing_status, processing_attempts,
	COALESCE(scrape_id, 0), updated_at`

// SelectForProcessing filters and orders matches per the Store contract.
func (s *Store) SelectForProcessing(ctx context.Context, f store.Filter) ([]model.Match, error) {
	if len(f.Statuses) == 0 {
		return nil, fmt.Errorf("filter requires at least one status")
	}
	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}

	var (
		where = []string{"processing_status = ANY($1)"}
		args  = []any{statuses}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Country != "" {
		where = append(where, "country = "+arg(f.Country))
	}
	if f.League != "" {
		where = append(where, "league = "+arg(f.League))
	}
	if f.Team != "" {
		where = append(where, "team = "+arg(f.Team))
	}
	if f.MaxAttempts > 0 {
		where = append(where, "processing_attempts < "+arg(f.MaxAttempts))
	}
	if len(f.ExcludeCountries) > 0 {
		where = append(where, "country != ALL("+arg(f.ExcludeCountries)+")")
	}
	if len(f.ExcludeKeys) > 0 {
		where = append(where, "(country || '-' || league) != ALL("+arg(f.ExcludeKeys)+")")
	}
	if f.MinScrapeID > 0 {
		where = append(where, "scrape_id >= "+arg(f.MinScrapeID))
	}

	byScrapeID, err := s.hasScrapeID(ctx)
	if err != nil {
		return nil, err
	}
	order := "scraped_at ASC"
	if byScrapeID {
		order = "scrape_id ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM matches WHERE %s ORDER BY %s",
		selectMatchColumns, strings.Join(where, " AND "), order)
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select for processing: %w", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select for processing: %w", err)
	}
	return out, nil
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var (
		m          model.Match
		internalID *string
		status     string
	)
	err := row.Scan(
		&m.MatchID, &internalID, &m.Country, &m.League, &m.Team, &m.Date,
		&m.ScrapedAt, &status, &m.Attempts, &m.ScrapeID, &m.UpdatedAt,
	)
	if err != nil {
		return model.Match{}, fmt.Errorf("scan match: %w", err)
	}
	if internalID != nil {
		m.InternalID = *internalID
	}
	m.Status = model.Status(status)
	return m, nil
}

const advanceStatusSQL = `
UPDATE matches
SET processing_status = $2,
	processing_attempts = processing_attempts + 1,
	updated_at = NOW()
WHERE match_id = $1 AND processing_status <> $2`

// AdvanceStatus moves a match forward. The status guard makes repeats
// no-ops, which is what keeps re-imports idempotent.
func (s *Store) AdvanceStatus(ctx context.Context, matchID string, status model.Status) (bool, error) {
	tag, err := s.db.Exec(ctx, advanceStatusSQL, matchID, string(status))
	if err != nil {
		return false, fmt.Errorf("advance status %s: %w", matchID, err)
	}
	return tag.RowsAffected() > 0, nil
}

const markQueuedSQL = `
UPDATE matches
SET processing_status = 'queued',
	processing_attempts = processing_attempts + 1,
	updated_at = NOW()
WHERE match_id = ANY($1) AND processing_status <> 'queued'`

// MarkQueued claims a shard's matches in one bulk update.
func (s *Store) MarkQueued(ctx context.Context, matchIDs []string) error {
	if len(matchIDs) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, markQueuedSQL, matchIDs); err != nil {
		return fmt.Errorf("mark queued: %w", err)
	}
	return nil
}

const upsertDetailsSQL = `
INSERT INTO match_details (match_id, payload, processing_status, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (match_id) DO UPDATE
SET payload = EXCLUDED.payload,
	processing_status = EXCLUDED.processing_status,
	updated_at = NOW()`

// UpsertDetails stores the summary payload as jsonb keyed by match id.
func (s *Store) UpsertDetails(ctx context.Context, matchID string, d model.MatchDetails) error {
	d.MatchID = matchID
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertDetailsSQL, matchID, payload, string(d.Status)); err != nil {
		return fmt.Errorf("upsert details %s: %w", matchID, err)
	}
	return nil
}

const upsertH2HSQL = `
INSERT INTO match_h2h (match_id, payload, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (match_id) DO UPDATE
SET payload = EXCLUDED.payload, updated_at = NOW()`

// UpsertH2H stores the head-to-head payload, same discipline as details.
func (s *Store) UpsertH2H(ctx context.Context, matchID string, h model.MatchH2H) error {
	h.MatchID = matchID
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal h2h: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertH2HSQL, matchID, payload); err != nil {
		return fmt.Errorf("upsert h2h %s: %w", matchID, err)
	}
	return nil
}

const setMatchDateSQL = `
UPDATE matches
SET match_date = COALESCE($2, match_date),
	internal_id = CASE WHEN $3 <> '' THEN $3 ELSE internal_id END,
	updated_at = NOW()
WHERE match_id = $1`

// SetMatchDate records the resolved kickoff date and recomputed internal id.
func (s *Store) SetMatchDate(ctx context.Context, matchID string, date *time.Time, internalID string) error {
	if _, err := s.db.Exec(ctx, setMatchDateSQL, matchID, date, internalID); err != nil {
		return fmt.Errorf("set match date %s: %w", matchID, err)
	}
	return nil
}

const fetchAssembledSQL = `
SELECT
	m.match_id, m.internal_id, m.country, m.league, m.team, m.match_date,
	m.scraped_at, m.processing_status, m.processing_attempts,
	COALESCE(m.scrape_id, 0), m.updated_at, d.payload, h.payload
FROM matches m
LEFT JOIN match_details d ON d.match_id = m.match_id
LEFT JOIN match_h2h h ON h.match_id = m.match_id
WHERE m.match_id = $1`

// FetchAssembled outer-joins the match with its extensions.
func (s *Store) FetchAssembled(ctx context.Context, matchID string) (store.Assembled, error) {
	var (
		m          model.Match
		internalID *string
		status     string
		detailsRaw []byte
		h2hRaw     []byte
	)
	err := s.db.QueryRow(ctx, fetchAssembledSQL, matchID).Scan(
		&m.MatchID, &internalID, &m.Country, &m.League, &m.Team, &m.Date,
		&m.ScrapedAt, &status, &m.Attempts, &m.ScrapeID, &m.UpdatedAt,
		&detailsRaw, &h2hRaw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Assembled{}, store.ErrNotFound
	}
	if err != nil {
		return store.Assembled{}, fmt.Errorf("fetch assembled %s: %w", matchID, err)
	}
	if internalID != nil {
		m.InternalID = *internalID
	}
	m.Status = model.Status(status)

	out := store.Assembled{Match: m}
	if len(detailsRaw) > 0 {
		var d model.MatchDetails
		if err := json.Unmarshal(detailsRaw, &d); err != nil {
			return store.Assembled{}, fmt.Errorf("decode details %s: %w", matchID, err)
		}
		out.Details = &d
	}
	if len(h2hRaw) > 0 {
		var h model.MatchH2H
		if err := json.Unmarshal(h2hRaw, &h); err != nil {
			return store.Assembled{}, fmt.Errorf("decode h2h %s: %w", matchID, err)
		}
		out.H2H = &h
	}
	return out, nil
}

const requeueStaleSQL = `
UPDATE matches
SET processing_status = 'pending', updated_at = NOW()
WHERE processing_status = 'queued' AND updated_at < $1`

// RequeueStale sweeps abandoned queued records back to pending.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, requeueStaleSQL, olderThan)
	if err != nil {
		return 0, fmt.Errorf("requeue stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const insertLeagueSQL = `
INSERT INTO leagues (country, league, url, discovered_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (country, league) DO NOTHING`

// InsertLeagues inserts discovered leagues, swallowing duplicates.
func (s *Store) InsertLeagues(ctx context.Context, leagues []model.League) (int, error) {
	inserted := 0
	for _, l := range leagues {
		tag, err := s.db.Exec(ctx, insertLeagueSQL, l.Country, l.League, l.URL, l.DiscoveredAt)
		if err != nil {
			return inserted, fmt.Errorf("insert league %s/%s: %w", l.Country, l.League, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const saveCheckpointSQL = `
INSERT INTO checkpoints (kind, payload, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (kind) DO UPDATE
SET payload = EXCLUDED.payload, updated_at = NOW()`

// SaveCheckpoint overwrites the singleton checkpoint for its kind.
func (s *Store) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if _, err := s.db.Exec(ctx, saveCheckpointSQL, cp.Kind, payload); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

const loadCheckpointSQL = `SELECT payload FROM checkpoints WHERE kind = $1`

// LoadCheckpoint returns the checkpoint for kind, or ErrNotFound.
func (s *Store) LoadCheckpoint(ctx context.Context, kind string) (model.Checkpoint, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, loadCheckpointSQL, kind).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Checkpoint{}, store.ErrNotFound
	}
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return model.Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

var _ store.Store = (*Store)(nil)
