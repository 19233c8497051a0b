package shard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
)

// Options parameterizes one export run.
type Options struct {
	// Limit is the shard size; every shard but the last holds exactly
	// Limit entries.
	Limit int
	// Start resumes a partial export at the given minimum scrape id.
	Start int64
	// ExcludeCountries and ExcludeLeagues omit work by country name and by
	// "Country-League" composite key respectively.
	ExcludeCountries []string
	ExcludeLeagues   []string
	// MaxAttempts drops records that exhausted their retry budget.
	MaxAttempts int
	// Dir receives the shard files.
	Dir string
}

// Summary reports what one export run produced.
type Summary struct {
	RunID   string
	Shards  int
	Matches int
}

// Exporter selects pending work, slices it into shards, persists each shard
// and claims its records.
type Exporter struct {
	store  store.Store
	logger *zap.Logger
}

// NewExporter constructs an Exporter.
func NewExporter(st store.Store, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: st, logger: logger}
}

// Export partitions all matching pending work into shard files. For each
// shard the file is persisted first and the records are marked queued only
// after: a shard that failed to persist must not claim its records, or the
// work would be silently lost.
func (e *Exporter) Export(ctx context.Context, opts Options) (Summary, error) {
	if opts.Limit <= 0 {
		return Summary{}, fmt.Errorf("shard size must be > 0")
	}

	pending, err := e.store.SelectForProcessing(ctx, store.Filter{
		Statuses:         []model.Status{model.StatusPending},
		MaxAttempts:      opts.MaxAttempts,
		ExcludeCountries: opts.ExcludeCountries,
		ExcludeKeys:      opts.ExcludeLeagues,
		MinScrapeID:      opts.Start,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("select pending: %w", err)
	}

	summary := Summary{RunID: uuid.NewString()}
	e.logger.Info("export run starting",
		zap.String("run_id", summary.RunID),
		zap.Int("pending", len(pending)),
		zap.Int("shard_size", opts.Limit),
	)

	for start := 0; start < len(pending); start += opts.Limit {
		end := start + opts.Limit
		if end > len(pending) {
			end = len(pending)
		}
		seq := summary.Shards + 1

		entries := make([]Entry, 0, end-start)
		ids := make([]string, 0, end-start)
		for _, m := range pending[start:end] {
			entries = append(entries, Entry{ScrapeID: m.ScrapeID, MatchID: m.MatchID})
			ids = append(ids, m.MatchID)
		}

		path, err := WriteShard(opts.Dir, seq, entries)
		if err != nil {
			return summary, err
		}
		if err := e.store.MarkQueued(ctx, ids); err != nil {
			return summary, fmt.Errorf("mark shard %d queued: %w", seq, err)
		}

		summary.Shards++
		summary.Matches += len(entries)
		e.logger.Info("shard exported",
			zap.String("path", path),
			zap.Int("size", len(entries)),
		)
	}

	e.logger.Info("export run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("shards", summary.Shards),
		zap.Int("matches", summary.Matches),
	)
	return summary, nil
}
