package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
	"github.com/scorelines/matchpipe/internal/store/memory"
)

// fakeCatalog serves a fixed site structure from memory.
type fakeCatalog struct {
	leagues   []model.League
	teams     map[string][]string  // exclusion key -> teams
	fixtures  map[string][]Fixture // team -> fixtures
	teamsErrs map[string]error
}

func (c *fakeCatalog) Leagues(context.Context) ([]model.League, error) {
	return c.leagues, nil
}

func (c *fakeCatalog) Teams(_ context.Context, league model.League) ([]string, error) {
	key := model.ExclusionKey(league.Country, league.League)
	if err := c.teamsErrs[key]; err != nil {
		return nil, err
	}
	return c.teams[key], nil
}

func (c *fakeCatalog) Fixtures(_ context.Context, _ model.League, team string) ([]Fixture, error) {
	return c.fixtures[team], nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		leagues: []model.League{
			{Country: "England", League: "Premier League"},
			{Country: "Spain", League: "La Liga"},
		},
		teams: map[string][]string{
			"England-Premier League": {"Arsenal", "Chelsea"},
			"Spain-La Liga":          {"Real Madrid"},
		},
		fixtures: map[string][]Fixture{
			"Arsenal":     {{MatchID: "e1", Home: "Arsenal", Away: "Leeds"}, {MatchID: "e2", Home: "Everton", Away: "Arsenal"}},
			"Chelsea":     {{MatchID: "e3", Home: "Chelsea", Away: "Fulham"}},
			"Real Madrid": {{MatchID: "s1", Home: "Real Madrid", Away: "Getafe"}},
		},
	}
}

func TestRunSeedsPendingMatches(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	runner := NewRunner(st, testCatalog(), nil)

	require.NoError(t, runner.Run(ctx))

	pending, err := st.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, pending, 4)

	// Scrape ids are assigned in discovery order, starting at 1.
	for i, m := range pending {
		assert.Equal(t, int64(i+1), m.ScrapeID)
		assert.NotEmpty(t, m.InternalID)
	}
	assert.Equal(t, "e1", pending[0].MatchID)
	assert.Equal(t, "s1", pending[3].MatchID)
	assert.Equal(t, "Spain", pending[3].Country)

	cp, err := st.LoadCheckpoint(ctx, model.CheckpointKindDiscovery)
	require.NoError(t, err)
	assert.Equal(t, "Real Madrid", cp.Team)
	assert.Equal(t, int64(4), cp.Index)
	assert.Equal(t, 3, cp.Counters.TeamsDone)
	assert.Equal(t, 4, cp.Counters.MatchesScraped)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	// A previous pass stopped after Arsenal; its two matches are already in.
	require.NoError(t, st.SaveCheckpoint(ctx, model.Checkpoint{
		Kind:    model.CheckpointKindDiscovery,
		Country: "England",
		League:  "Premier League",
		Team:    "Arsenal",
		Index:   2,
		Counters: model.CheckpointCounters{
			TeamsSeen: 1, TeamsDone: 1, MatchesScraped: 2,
			StartedAt: time.Now().UTC().Add(-time.Hour),
		},
	}))
	_, err := st.InsertMatches(ctx, []model.Match{
		{MatchID: "e1", Country: "England", League: "Premier League", Team: "Arsenal", ScrapedAt: time.Now().UTC(), Status: model.StatusPending, ScrapeID: 1},
		{MatchID: "e2", Country: "England", League: "Premier League", Team: "Arsenal", ScrapedAt: time.Now().UTC(), Status: model.StatusPending, ScrapeID: 2},
	})
	require.NoError(t, err)

	runner := NewRunner(st, testCatalog(), nil)
	require.NoError(t, runner.Run(ctx))

	pending, err := st.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, pending, 4)

	// Chelsea and Real Madrid picked up where the cursor stopped, with
	// scrape ids continuing from the checkpoint index.
	assert.Equal(t, "e3", pending[2].MatchID)
	assert.Equal(t, int64(3), pending[2].ScrapeID)
	assert.Equal(t, "s1", pending[3].MatchID)
	assert.Equal(t, int64(4), pending[3].ScrapeID)
}

func TestRunContinuesWhenCursorTeamVanished(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveCheckpoint(ctx, model.Checkpoint{
		Kind:     model.CheckpointKindDiscovery,
		Country:  "England",
		League:   "Premier League",
		Team:     "Wimbledon", // no longer on the site
		Index:    5,
		Counters: model.CheckpointCounters{StartedAt: time.Now().UTC()},
	}))

	runner := NewRunner(st, testCatalog(), nil)
	require.NoError(t, runner.Run(ctx))

	// The cursor league yields nothing, but later leagues are still walked.
	pending, err := st.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "s1", pending[0].MatchID)
	assert.Equal(t, int64(6), pending[0].ScrapeID)
}

func TestRunSkipsUnreachableLeague(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	catalog := testCatalog()
	catalog.teamsErrs = map[string]error{
		"England-Premier League": errors.New("503 from standings page"),
	}

	runner := NewRunner(st, catalog, nil)
	require.NoError(t, runner.Run(ctx))

	pending, err := st.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Spain", pending[0].Country)
}

func TestRunPersistsLeagues(t *testing.T) {
	t.Parallel()

	st := memory.New()
	runner := NewRunner(st, testCatalog(), nil)
	require.NoError(t, runner.Run(context.Background()))

	// Rerunning does not duplicate leagues or matches.
	require.NoError(t, runner.Run(context.Background()))
	pending, err := st.SelectForProcessing(context.Background(), store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}
