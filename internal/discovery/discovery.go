// Package discovery enumerates countries, leagues and team fixture lists,
// seeding the match record store with pending work. It is the only writer of
// the discovery checkpoint and the only assigner of scrape ids.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/metrics"
	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
)

// Fixture is one match discovered on a team's result list.
type Fixture struct {
	MatchID string
	Home    string
	Away    string
	Date    *time.Time
}

// Catalog enumerates the site. The colly-backed implementation lives in
// sources.go; tests substitute their own.
type Catalog interface {
	Leagues(ctx context.Context) ([]model.League, error)
	Teams(ctx context.Context, league model.League) ([]string, error)
	Fixtures(ctx context.Context, league model.League, team string) ([]Fixture, error)
}

// Runner walks the catalog, inserting matches and checkpointing after every
// team so an interrupted pass resumes where it stopped.
type Runner struct {
	store   store.Store
	catalog Catalog
	logger  *zap.Logger

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// NewRunner constructs a Runner.
func NewRunner(st store.Store, catalog Catalog, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:   st,
		catalog: catalog,
		logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one enumeration pass. The checkpoint cursor names the last
// team fully persisted; on restart everything up to and including the cursor
// is skipped.
func (r *Runner) Run(ctx context.Context) error {
	cp, err := r.loadCheckpoint(ctx)
	if err != nil {
		return err
	}
	resuming := cp.Team != ""
	if resuming {
		r.logger.Info("resuming discovery",
			zap.String("country", cp.Country),
			zap.String("league", cp.League),
			zap.String("team", cp.Team),
			zap.Int64("index", cp.Index),
		)
	}

	leagues, err := r.catalog.Leagues(ctx)
	if err != nil {
		return fmt.Errorf("enumerate leagues: %w", err)
	}
	if _, err := r.store.InsertLeagues(ctx, leagues); err != nil {
		return fmt.Errorf("persist leagues: %w", err)
	}

	for _, league := range leagues {
		if resuming && !matchesCursor(cp, league) {
			continue
		}
		if err := r.runLeague(ctx, league, &cp, &resuming); err != nil {
			return err
		}
		// Once the cursor league has been walked, later leagues are new
		// work even if the cursor team vanished from the site.
		resuming = false
	}

	cp.Counters.ElapsedSeconds = int64(r.Now().Sub(cp.Counters.StartedAt).Seconds())
	if err := r.store.SaveCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("save final checkpoint: %w", err)
	}
	r.logger.Info("discovery finished",
		zap.Int("teams_done", cp.Counters.TeamsDone),
		zap.Int("matches", cp.Counters.MatchesScraped),
	)
	return nil
}

func (r *Runner) runLeague(ctx context.Context, league model.League, cp *model.Checkpoint, resuming *bool) error {
	teams, err := r.catalog.Teams(ctx, league)
	if err != nil {
		// One unreachable league page should not sink the pass.
		r.logger.Warn("skipping league",
			zap.String("country", league.Country),
			zap.String("league", league.League),
			zap.Error(err),
		)
		return nil
	}

	for _, team := range teams {
		if *resuming {
			if team == cp.Team {
				*resuming = false
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("discovery interrupted: %w", err)
		}
		cp.Counters.TeamsSeen++
		if err := r.runTeam(ctx, league, team, cp); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runTeam(ctx context.Context, league model.League, team string, cp *model.Checkpoint) error {
	fixtures, err := r.catalog.Fixtures(ctx, league, team)
	if err != nil {
		r.logger.Warn("skipping team",
			zap.String("team", team),
			zap.Error(err),
		)
		return nil
	}

	now := r.Now()
	records := make([]model.Match, 0, len(fixtures))
	for _, f := range fixtures {
		cp.Index++
		records = append(records, model.Match{
			MatchID:    f.MatchID,
			InternalID: model.InternalID(f.Date, f.Home, f.Away),
			Country:    league.Country,
			League:     league.League,
			Team:       team,
			Date:       f.Date,
			ScrapedAt:  now,
			Status:     model.StatusPending,
			ScrapeID:   cp.Index,
		})
	}

	inserted, err := r.store.InsertMatches(ctx, records)
	if err != nil {
		return fmt.Errorf("insert fixtures for %s: %w", team, err)
	}
	metrics.ObserveDiscovered(inserted)

	cp.Country = league.Country
	cp.League = league.League
	cp.Team = team
	cp.Counters.TeamsDone++
	cp.Counters.MatchesScraped += inserted
	cp.Counters.ElapsedSeconds = int64(now.Sub(cp.Counters.StartedAt).Seconds())
	if err := r.store.SaveCheckpoint(ctx, *cp); err != nil {
		return fmt.Errorf("save checkpoint after %s: %w", team, err)
	}

	r.logger.Info("team discovered",
		zap.String("team", team),
		zap.Int("fixtures", len(fixtures)),
		zap.Int("inserted", inserted),
	)
	return nil
}

func (r *Runner) loadCheckpoint(ctx context.Context) (model.Checkpoint, error) {
	cp, err := r.store.LoadCheckpoint(ctx, model.CheckpointKindDiscovery)
	if errors.Is(err, store.ErrNotFound) {
		return model.Checkpoint{
			Kind:     model.CheckpointKindDiscovery,
			Counters: model.CheckpointCounters{StartedAt: r.Now()},
		}, nil
	}
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// matchesCursor reports whether the league contains the checkpoint cursor.
func matchesCursor(cp model.Checkpoint, league model.League) bool {
	return cp.Country == league.Country && cp.League == league.League
}
