package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
)

func seedMatch(id string, scrapeID int64, scrapedAt time.Time) model.Match {
	return model.Match{
		MatchID:   id,
		Country:   "England",
		League:    "Premier League",
		Team:      "Arsenal",
		ScrapedAt: scrapedAt,
		Status:    model.StatusPending,
		ScrapeID:  scrapeID,
	}
}

func TestInsertMatchesSkipsDuplicates(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	records := []model.Match{
		seedMatch("m1", 1, now),
		seedMatch("m2", 2, now),
		seedMatch("m1", 3, now), // duplicate id
		seedMatch("m3", 4, now),
		seedMatch("m2", 5, now), // duplicate id
	}
	inserted, err := s.InsertMatches(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// The first write wins; the duplicate never replaces it.
	got, err := s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Match.ScrapeID)
}

func TestSelectForProcessingOrdersByScrapeID(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.InsertMatches(ctx, []model.Match{
		seedMatch("m3", 3, base.Add(time.Hour)),
		seedMatch("m1", 1, base.Add(2*time.Hour)),
		seedMatch("m2", 2, base),
	})
	require.NoError(t, err)

	out, err := s.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "m1", out[0].MatchID)
	assert.Equal(t, "m2", out[1].MatchID)
	assert.Equal(t, "m3", out[2].MatchID)
}

func TestSelectForProcessingFallsBackToScrapedAt(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// The oldest record predates scrape ids, so the whole collection sorts
	// by scraped-at even though newer records carry ids.
	_, err := s.InsertMatches(ctx, []model.Match{
		seedMatch("old", 0, base),
		seedMatch("newer", 7, base.Add(2*time.Hour)),
		seedMatch("new", 9, base.Add(time.Hour)),
	})
	require.NoError(t, err)

	out, err := s.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "old", out[0].MatchID)
	assert.Equal(t, "new", out[1].MatchID)
	assert.Equal(t, "newer", out[2].MatchID)
}

func TestSelectForProcessingFilters(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	spain := seedMatch("es1", 1, now)
	spain.Country = "Spain"
	spain.League = "La Liga"
	laLiga2 := seedMatch("es2", 2, now)
	laLiga2.Country = "Spain"
	laLiga2.League = "Segunda"
	england := seedMatch("en1", 3, now)
	exhausted := seedMatch("en2", 4, now)
	exhausted.Attempts = 3
	queued := seedMatch("en3", 5, now)
	queued.Status = model.StatusQueued

	_, err := s.InsertMatches(ctx, []model.Match{spain, laLiga2, england, exhausted, queued})
	require.NoError(t, err)

	out, err := s.SelectForProcessing(ctx, store.Filter{
		Statuses:         []model.Status{model.StatusPending},
		MaxAttempts:      3,
		ExcludeCountries: []string{"Spain"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "en1", out[0].MatchID)

	out, err = s.SelectForProcessing(ctx, store.Filter{
		Statuses:    []model.Status{model.StatusPending},
		ExcludeKeys: []string{model.ExclusionKey("Spain", "La Liga")},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, m := range out {
		assert.NotEqual(t, "es1", m.MatchID)
	}
}

func TestSelectForProcessingMinScrapeIDAndLimit(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.InsertMatches(ctx, []model.Match{
		seedMatch("m1", 1, now),
		seedMatch("m2", 2, now),
		seedMatch("m3", 3, now),
		seedMatch("m4", 4, now),
	})
	require.NoError(t, err)

	out, err := s.SelectForProcessing(ctx, store.Filter{
		Statuses:    []model.Status{model.StatusPending},
		MinScrapeID: 2,
		Limit:       2,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m2", out[0].MatchID)
	assert.Equal(t, "m3", out[1].MatchID)
}

func TestAdvanceStatusGuard(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, err := s.InsertMatches(ctx, []model.Match{seedMatch("m1", 1, time.Now().UTC())})
	require.NoError(t, err)

	changed, err := s.AdvanceStatus(ctx, "m1", model.StatusComplete)
	require.NoError(t, err)
	assert.True(t, changed)

	// A repeat advance to the same status is a no-op.
	changed, err = s.AdvanceStatus(ctx, "m1", model.StatusComplete)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.Match.Status)
	assert.Equal(t, 1, got.Match.Attempts)

	changed, err = s.AdvanceStatus(ctx, "missing", model.StatusComplete)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMarkQueuedIncrementsAttempts(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, err := s.InsertMatches(ctx, []model.Match{
		seedMatch("m1", 1, time.Now().UTC()),
		seedMatch("m2", 2, time.Now().UTC()),
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkQueued(ctx, []string{"m1", "m2", "missing"}))

	for _, id := range []string{"m1", "m2"} {
		got, err := s.FetchAssembled(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusQueued, got.Match.Status)
		assert.Equal(t, 1, got.Match.Attempts)
	}

	// Re-queueing an already queued record does not burn another attempt.
	require.NoError(t, s.MarkQueued(ctx, []string{"m1"}))
	got, err := s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Match.Attempts)
}

func TestRequeueStale(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Now = func() time.Time { return base }
	_, err := s.InsertMatches(ctx, []model.Match{
		seedMatch("stale", 1, base),
		seedMatch("fresh", 2, base),
		seedMatch("untouched", 3, base),
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkQueued(ctx, []string{"stale"}))

	s.Now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, s.MarkQueued(ctx, []string{"fresh"}))

	reset, err := s.RequeueStale(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := s.FetchAssembled(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Match.Status)
	// The sweep does not refund or consume an attempt.
	assert.Equal(t, 1, got.Match.Attempts)

	got, err = s.FetchAssembled(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, got.Match.Status)
}

func TestSetMatchDate(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	m := seedMatch("m1", 1, time.Now().UTC())
	m.InternalID = model.InternalID(nil, "Arsenal", "Chelsea")
	_, err := s.InsertMatches(ctx, []model.Match{m})
	require.NoError(t, err)

	date := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	resolved := model.InternalID(&date, "Arsenal", "Chelsea")
	require.NoError(t, s.SetMatchDate(ctx, "m1", &date, resolved))

	got, err := s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got.Match.Date)
	assert.Equal(t, date, *got.Match.Date)
	assert.Equal(t, resolved, got.Match.InternalID)

	// A nil date with an empty id changes nothing.
	require.NoError(t, s.SetMatchDate(ctx, "m1", nil, ""))
	got, err = s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, resolved, got.Match.InternalID)
	require.NotNil(t, got.Match.Date)
}

func TestFetchAssembled(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, err := s.FetchAssembled(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.InsertMatches(ctx, []model.Match{seedMatch("m1", 1, time.Now().UTC())})
	require.NoError(t, err)

	got, err := s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, got.Details)
	assert.Nil(t, got.H2H)

	require.NoError(t, s.UpsertDetails(ctx, "m1", model.MatchDetails{
		Home: model.TeamInfo{Name: "Arsenal"},
		Away: model.TeamInfo{Name: "Chelsea"},
	}))
	require.NoError(t, s.UpsertH2H(ctx, "m1", model.MatchH2H{
		Sections: []model.H2HSection{{Title: "Head-to-head matches"}},
	}))

	got, err = s.FetchAssembled(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got.Details)
	assert.Equal(t, "m1", got.Details.MatchID)
	assert.Equal(t, "Arsenal", got.Details.Home.Name)
	require.NotNil(t, got.H2H)
	assert.Equal(t, "m1", got.H2H.MatchID)
}

func TestCheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, err := s.LoadCheckpoint(ctx, model.CheckpointKindDiscovery)
	assert.ErrorIs(t, err, store.ErrNotFound)

	cp := model.Checkpoint{
		Kind:    model.CheckpointKindDiscovery,
		Country: "England",
		League:  "Premier League",
		Team:    "Arsenal",
		Index:   42,
	}
	require.NoError(t, s.SaveCheckpoint(ctx, cp))

	got, err := s.LoadCheckpoint(ctx, model.CheckpointKindDiscovery)
	require.NoError(t, err)
	assert.Equal(t, cp.Team, got.Team)
	assert.Equal(t, int64(42), got.Index)
	assert.False(t, got.UpdatedAt.IsZero())
}
