// Package store defines the match record store interface. By programming
// against an interface the pipeline runs identically on Postgres in
// production and on the in-memory store in tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/scorelines/matchpipe/internal/model"
)

// ErrNotFound reports a lookup for an entity that does not exist. Absence is
// an expected outcome for callers, not a failure.
var ErrNotFound = errors.New("not found")

// Filter narrows a SelectForProcessing call. Zero values mean "no
// constraint" except Statuses, which is required.
type Filter struct {
	Statuses []model.Status
	Country  string
	League   string
	Team     string
	// MaxAttempts excludes records whose attempt counter has reached the
	// retry budget; zero disables the check.
	MaxAttempts int
	// ExcludeCountries omits every record from the listed countries.
	ExcludeCountries []string
	// ExcludeKeys omits records whose model.ExclusionKey(country, league)
	// appears in the set, regardless of other filter fields.
	ExcludeKeys []string
	// MinScrapeID resumes a partial export at the given sequence number.
	MinScrapeID int64
	Limit       int
}

// Assembled is a Match outer-joined with its extensions. Missing extensions
// are nil, not errors.
type Assembled struct {
	Match   model.Match
	Details *model.MatchDetails
	H2H     *model.MatchH2H
}

// Store is the authoritative entity set and its status transitions. All
// methods must be safe under concurrent invocation by many importers; the
// implementations rely on per-statement atomic upsert/update semantics and
// introduce no application-level locking.
type Store interface {
	// InsertMatches bulk-inserts records with unique-key semantics on the
	// match id. Duplicate-key violations are swallowed per-record; the
	// returned count is the number actually inserted. Any other failure
	// aborts and propagates.
	InsertMatches(ctx context.Context, records []model.Match) (int, error)

	// SelectForProcessing returns matches satisfying the filter in a
	// deterministic, resumable order: scrape id ascending when the sampled
	// record has one, falling back to scraped-at ascending collection-wide
	// for data that predates the scrape id field.
	SelectForProcessing(ctx context.Context, f Filter) ([]model.Match, error)

	// AdvanceStatus moves a match to status, incrementing the attempt
	// counter and bumping the update timestamp. It reports whether any
	// record changed: false for an unknown match id, and false when the
	// record already carries the target status, which keeps repeated
	// imports of the same result file idempotent.
	AdvanceStatus(ctx context.Context, matchID string, status model.Status) (bool, error)

	// MarkQueued transitions the given ids to queued in one bulk update,
	// incrementing each attempt counter. This is the status-advance that
	// accounts for the attempt consumed by handing the work to a shard.
	MarkQueued(ctx context.Context, matchIDs []string) error

	// UpsertDetails stores the summary extension with set-on-conflict
	// semantics keyed by match id: created if absent, fields replaced if
	// present, never duplicated.
	UpsertDetails(ctx context.Context, matchID string, d model.MatchDetails) error

	// UpsertH2H stores the head-to-head extension, same discipline.
	UpsertH2H(ctx context.Context, matchID string, h model.MatchH2H) error

	// SetMatchDate records the authoritative kickoff date and the internal
	// id recomputed from it, superseding any provisional internal id.
	SetMatchDate(ctx context.Context, matchID string, date *time.Time, internalID string) error

	// FetchAssembled returns the match joined with its extensions.
	// ErrNotFound when the base match does not exist.
	FetchAssembled(ctx context.Context, matchID string) (Assembled, error)

	// RequeueStale resets queued records not touched since olderThan back
	// to pending without incrementing attempts, recovering shards whose
	// worker died mid-run. Returns the number of records reset.
	RequeueStale(ctx context.Context, olderThan time.Time) (int, error)

	// InsertLeagues bulk-inserts discovered leagues with the same
	// duplicate-swallow discipline as InsertMatches.
	InsertLeagues(ctx context.Context, leagues []model.League) (int, error)

	// SaveCheckpoint overwrites the singleton checkpoint for its kind.
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error

	// LoadCheckpoint returns the current checkpoint for kind, or
	// ErrNotFound if that pass has never run.
	LoadCheckpoint(ctx context.Context, kind string) (model.Checkpoint, error)

	// Close releases underlying resources.
	Close()
}
