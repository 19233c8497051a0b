package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	st, err := NewWithDB(mock)
	require.NoError(t, err)
	return st, mock
}

func TestNewWithDBRequiresDB(t *testing.T) {
	t.Parallel()

	_, err := NewWithDB(nil)
	assert.Error(t, err)
}

func TestInsertMatchesCountsConflicts(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []model.Match{
		{MatchID: "m1", Country: "England", League: "Premier League", Team: "Arsenal", ScrapedAt: now, Status: model.StatusPending, ScrapeID: 1},
		{MatchID: "m1", Country: "England", League: "Premier League", Team: "Arsenal", ScrapedAt: now, Status: model.StatusPending, ScrapeID: 2},
	}

	insertRe := regexp.QuoteMeta(insertMatchSQL)
	mock.ExpectExec(insertRe).
		WithArgs("m1", "", "England", "Premier League", "Arsenal", pgxmock.AnyArg(), now, "pending", 0, int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// The duplicate hits the conflict clause and affects zero rows.
	mock.ExpectExec(insertRe).
		WithArgs("m1", "", "England", "Premier League", "Arsenal", pgxmock.AnyArg(), now, "pending", 0, int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := st.InsertMatches(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectForProcessingRequiresStatus(t *testing.T) {
	st, _ := newMockStore(t)

	_, err := st.SelectForProcessing(context.Background(), store.Filter{})
	assert.Error(t, err)
}

func TestSelectForProcessingScrapeIDOrder(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(sampleScrapeIDSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"scrape_id"}).AddRow(int64(1)))

	rows := pgxmock.NewRows([]string{
		"match_id", "internal_id", "country", "league", "team", "match_date",
		"scraped_at", "processing_status", "processing_attempts", "scrape_id", "updated_at",
	}).
		AddRow("m1", nil, "England", "Premier League", "Arsenal", nil, now, "pending", 0, int64(1), now).
		AddRow("m2", nil, "England", "Premier League", "Chelsea", nil, now, "pending", 1, int64(2), now)
	mock.ExpectQuery(`FROM matches WHERE processing_status = ANY\(\$1\).+ORDER BY scrape_id ASC`).
		WithArgs([]string{"pending"}).
		WillReturnRows(rows)

	out, err := st.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].MatchID)
	assert.Equal(t, int64(2), out[1].ScrapeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectForProcessingScrapedAtFallback(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// The sampled record has no scrape id, so ordering falls back.
	mock.ExpectQuery(regexp.QuoteMeta(sampleScrapeIDSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"scrape_id"}).AddRow(nil))

	rows := pgxmock.NewRows([]string{
		"match_id", "internal_id", "country", "league", "team", "match_date",
		"scraped_at", "processing_status", "processing_attempts", "scrape_id", "updated_at",
	}).AddRow("m1", nil, "England", "Premier League", "Arsenal", nil, now, "pending", 0, int64(0), now)
	mock.ExpectQuery(`FROM matches WHERE .+ORDER BY scraped_at ASC`).
		WithArgs([]string{"pending"}).
		WillReturnRows(rows)

	out, err := st.SelectForProcessing(ctx, store.Filter{Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceStatusGuard(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	advanceRe := regexp.QuoteMeta(advanceStatusSQL)

	mock.ExpectExec(advanceRe).
		WithArgs("m1", "complete").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	changed, err := st.AdvanceStatus(ctx, "m1", model.StatusComplete)
	require.NoError(t, err)
	assert.True(t, changed)

	// Already complete: the status guard filters the row out.
	mock.ExpectExec(advanceRe).
		WithArgs("m1", "complete").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	changed, err = st.AdvanceStatus(ctx, "m1", model.StatusComplete)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkQueued(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	// An empty id list issues no statement.
	require.NoError(t, st.MarkQueued(ctx, nil))

	mock.ExpectExec(regexp.QuoteMeta(markQueuedSQL)).
		WithArgs([]string{"m1", "m2"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	require.NoError(t, st.MarkQueued(ctx, []string{"m1", "m2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDetails(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(upsertDetailsSQL)).
		WithArgs("m1", pgxmock.AnyArg(), "complete").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.UpsertDetails(ctx, "m1", model.MatchDetails{
		Home:   model.TeamInfo{Name: "Arsenal"},
		Away:   model.TeamInfo{Name: "Chelsea"},
		Status: model.StatusComplete,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeueStale(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(requeueStaleSQL)).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := st.RequeueStale(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAssembledNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`FROM matches m`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.FetchAssembled(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCheckpoint(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(loadCheckpointSQL)).
		WithArgs("discovery").
		WillReturnError(pgx.ErrNoRows)
	_, err := st.LoadCheckpoint(ctx, "discovery")
	assert.ErrorIs(t, err, store.ErrNotFound)

	payload := []byte(`{"kind":"discovery","team":"Arsenal","index":42}`)
	mock.ExpectQuery(regexp.QuoteMeta(loadCheckpointSQL)).
		WithArgs("discovery").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))
	cp, err := st.LoadCheckpoint(ctx, "discovery")
	require.NoError(t, err)
	assert.Equal(t, "Arsenal", cp.Team)
	assert.Equal(t, int64(42), cp.Index)
	assert.NoError(t, mock.ExpectationsWereMet())
}
