// Package importer reconciles shard worker output back into the match
// record store.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/metrics"
	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/shard"
	"github.com/scorelines/matchpipe/internal/store"
)

// Summary aggregates one import run.
type Summary struct {
	Files        int
	SkippedFiles int
	Processed    int
	Succeeded    int
	Errored      int
}

// Importer applies result files to the store. The whole pass is idempotent:
// importing the same file twice yields the same store state, because status
// advances are guarded and details are upserts.
type Importer struct {
	store  store.Store
	logger *zap.Logger
}

// New constructs an Importer.
func New(st store.Store, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: st, logger: logger}
}

// Run imports every result file under dir in sorted order. A malformed file
// is logged and skipped; the run keeps making forward progress. Store errors
// other than per-record bookkeeping abort the run.
func (i *Importer) Run(ctx context.Context, dir string) (Summary, error) {
	files, err := listResultFiles(dir)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("import interrupted: %w", err)
		}
		results, err := shard.ReadResults(path)
		if err != nil {
			i.logger.Warn("skipping malformed result file",
				zap.String("path", path),
				zap.Error(err),
			)
			summary.SkippedFiles++
			continue
		}
		summary.Files++
		for _, r := range results {
			if err := i.apply(ctx, r); err != nil {
				return summary, err
			}
			summary.Processed++
			if r.Success() {
				summary.Succeeded++
				metrics.ObserveImport("success")
			} else {
				summary.Errored++
				metrics.ObserveImport("error")
			}
		}
	}

	i.logger.Info("import finished",
		zap.Int("files", summary.Files),
		zap.Int("skipped_files", summary.SkippedFiles),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("errored", summary.Errored),
	)
	return summary, nil
}

// apply reconciles one result entry. Error entries change nothing: the
// attempt was already counted when the match was queued, and terminal
// failure is decided at selection time once the attempt budget is spent,
// never written here.
func (i *Importer) apply(ctx context.Context, r shard.Result) error {
	if !r.Success() {
		i.logger.Debug("match errored in worker",
			zap.String("match_id", r.MatchID),
			zap.String("error", r.Error),
		)
		return nil
	}

	changed, err := i.store.AdvanceStatus(ctx, r.MatchID, model.StatusComplete)
	if err != nil {
		return fmt.Errorf("advance %s: %w", r.MatchID, err)
	}
	if !changed {
		i.logger.Debug("match already reconciled", zap.String("match_id", r.MatchID))
	}

	// DateInfo is authoritative when the worker resolved a date; otherwise
	// the details-embedded internal id still supersedes a provisional one.
	if r.DateInfo != nil {
		date := r.DateInfo.Date
		if err := i.store.SetMatchDate(ctx, r.MatchID, &date, r.DateInfo.InternalID); err != nil {
			return fmt.Errorf("set date %s: %w", r.MatchID, err)
		}
	} else if r.Details.InternalID != "" {
		if err := i.store.SetMatchDate(ctx, r.MatchID, nil, r.Details.InternalID); err != nil {
			return fmt.Errorf("set internal id %s: %w", r.MatchID, err)
		}
	}

	if err := i.store.UpsertDetails(ctx, r.MatchID, *r.Details); err != nil {
		return fmt.Errorf("upsert details %s: %w", r.MatchID, err)
	}
	return nil
}

func listResultFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
