// Package worker implements the per-shard processing loop.
package worker

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/events"
	"github.com/scorelines/matchpipe/internal/metrics"
	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/shard"
)

// Scraper produces the raw summary payload for one match. The browser
// automation behind it is outside the pipeline; a timeout or selector miss
// surfaces as an error and is treated as a per-match failure.
type Scraper interface {
	ScrapeSummary(ctx context.Context, matchID string) (*model.MatchDetails, *model.DateInfo, error)
}

// Config controls Worker behavior.
type Config struct {
	// MinDelay/MaxDelay bound the randomized pause between matches. A
	// politeness control on the external site, not a correctness one.
	MinDelay time.Duration
	MaxDelay time.Duration
	// PageBudget caps one scrape attempt.
	PageBudget time.Duration
}

// Summary reports what one shard run produced.
type Summary struct {
	Shard     string
	Processed int
	Succeeded int
	Errored   int
	Output    string
}

// Worker consumes exactly one shard, strictly sequentially, and emits one
// result file. It never writes to the shared store; the result file is the
// sole interface to the importer, which is what lets many workers run
// concurrently with no lock contention.
type Worker struct {
	scraper Scraper
	cfg     Config
	logger  *zap.Logger

	// pause is injectable so tests do not sleep.
	pause func(ctx context.Context, d time.Duration)
}

// New constructs a Worker.
func New(scraper Scraper, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageBudget <= 0 {
		cfg.PageBudget = 20 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay + 500*time.Millisecond
	}
	return &Worker{
		scraper: scraper,
		cfg:     cfg,
		logger:  logger,
		pause:   sleepCtx,
	}
}

// Run processes the shard at shardPath and writes the result file to outDir.
// A single match's failure never aborts the shard; the whole ordered result
// list is buffered and published atomically at the end.
func (w *Worker) Run(ctx context.Context, shardPath, outDir string) (Summary, error) {
	entries, err := shard.ReadShard(shardPath)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Shard: shardPath}
	results := make([]shard.Result, 0, len(entries))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("shard interrupted: %w", err)
		}
		results = append(results, w.processEntry(ctx, entry))
		summary.Processed++
		if results[len(results)-1].Success() {
			summary.Succeeded++
		} else {
			summary.Errored++
		}
		if i < len(entries)-1 {
			w.pause(ctx, w.delay())
		}
	}

	out, err := shard.WriteResults(outDir, shardPath, results)
	if err != nil {
		return summary, err
	}
	summary.Output = out
	w.logger.Info("shard finished",
		zap.String("shard", shardPath),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("errored", summary.Errored),
	)
	return summary, nil
}

func (w *Worker) processEntry(ctx context.Context, entry shard.Entry) shard.Result {
	result := shard.Result{MatchID: entry.MatchID, ScrapeID: entry.ScrapeID}

	pageCtx, cancel := context.WithTimeout(ctx, w.cfg.PageBudget)
	defer cancel()

	details, dateInfo, err := w.scraper.ScrapeSummary(pageCtx, entry.MatchID)
	if err != nil {
		w.logger.Warn("scrape failed",
			zap.String("match_id", entry.MatchID),
			zap.Error(err),
		)
		metrics.ObserveScrapeFailure()
		result.Error = err.Error()
		return result
	}

	details.MatchID = entry.MatchID
	details.Status = model.StatusComplete
	details.Events = events.Reconcile(details.Events)
	result.Details = details
	result.DateInfo = dateInfo
	return result
}

// delay picks a jittered pause in [MinDelay, MaxDelay].
func (w *Worker) delay() time.Duration {
	span := w.cfg.MaxDelay - w.cfg.MinDelay
	if span <= 0 {
		return w.cfg.MinDelay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return w.cfg.MinDelay
	}
	return w.cfg.MinDelay + time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
