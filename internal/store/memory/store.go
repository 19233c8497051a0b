// Package memory provides an in-memory Store implementation for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scorelines/matchpipe/internal/model"
	"github.com/scorelines/matchpipe/internal/store"
)

// Store keeps all collections in maps guarded by one mutex. It mirrors the
// per-document atomicity the Postgres store gets from single statements.
type Store struct {
	mu          sync.RWMutex
	matches     map[string]model.Match
	details     map[string]model.MatchDetails
	h2h         map[string]model.MatchH2H
	leagues     map[string]model.League
	checkpoints map[string]model.Checkpoint

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		matches:     make(map[string]model.Match),
		details:     make(map[string]model.MatchDetails),
		h2h:         make(map[string]model.MatchH2H),
		leagues:     make(map[string]model.League),
		checkpoints: make(map[string]model.Checkpoint),
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// InsertMatches inserts records, skipping ids that already exist.
func (s *Store) InsertMatches(_ context.Context, records []model.Match) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		if _, exists := s.matches[rec.MatchID]; exists {
			continue
		}
		s.matches[rec.MatchID] = rec
		inserted++
	}
	return inserted, nil
}

// SelectForProcessing filters and orders matches as the Store contract
// requires.
func (s *Store) SelectForProcessing(_ context.Context, f store.Filter) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantStatus := make(map[model.Status]struct{}, len(f.Statuses))
	for _, st := range f.Statuses {
		wantStatus[st] = struct{}{}
	}
	excludeCountry := make(map[string]struct{}, len(f.ExcludeCountries))
	for _, c := range f.ExcludeCountries {
		excludeCountry[c] = struct{}{}
	}
	excludeKey := make(map[string]struct{}, len(f.ExcludeKeys))
	for _, k := range f.ExcludeKeys {
		excludeKey[k] = struct{}{}
	}

	var out []model.Match
	for _, m := range s.matches {
		if _, ok := wantStatus[m.Status]; !ok {
			continue
		}
		if f.Country != "" && m.Country != f.Country {
			continue
		}
		if f.League != "" && m.League != f.League {
			continue
		}
		if f.Team != "" && m.Team != f.Team {
			continue
		}
		if f.MaxAttempts > 0 && m.Attempts >= f.MaxAttempts {
			continue
		}
		if _, ok := excludeCountry[m.Country]; ok {
			continue
		}
		if _, ok := excludeKey[model.ExclusionKey(m.Country, m.League)]; ok {
			continue
		}
		if f.MinScrapeID > 0 && m.ScrapeID < f.MinScrapeID {
			continue
		}
		out = append(out, m)
	}

	if s.sampleHasScrapeIDLocked() {
		sort.Slice(out, func(i, j int) bool { return out[i].ScrapeID < out[j].ScrapeID })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ScrapedAt.Before(out[j].ScrapedAt) })
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// sampleHasScrapeIDLocked checks one record, the oldest by scraped-at, for
// a populated scrape id. The fallback is collection-wide, not per-record:
// collections that predate the scrape id field sort entirely by scraped-at.
func (s *Store) sampleHasScrapeIDLocked() bool {
	var sample *model.Match
	for _, m := range s.matches {
		m := m
		if sample == nil || m.ScrapedAt.Before(sample.ScrapedAt) {
			sample = &m
		}
	}
	return sample != nil && sample.ScrapeID > 0
}

// AdvanceStatus moves a match forward, skipping the write when the record
// already carries the target status.
func (s *Store) AdvanceStatus(_ context.Context, matchID string, status model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok || m.Status == status {
		return false, nil
	}
	m.Status = status
	m.Attempts++
	m.UpdatedAt = s.Now()
	s.matches[matchID] = m
	return true, nil
}

// MarkQueued bulk-transitions the ids to queued.
func (s *Store) MarkQueued(_ context.Context, matchIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	for _, id := range matchIDs {
		m, ok := s.matches[id]
		if !ok || m.Status == model.StatusQueued {
			continue
		}
		m.Status = model.StatusQueued
		m.Attempts++
		m.UpdatedAt = now
		s.matches[id] = m
	}
	return nil
}

// UpsertDetails replaces the summary extension for matchID.
func (s *Store) UpsertDetails(_ context.Context, matchID string, d model.MatchDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.MatchID = matchID
	s.details[matchID] = d
	return nil
}

// UpsertH2H replaces the head-to-head extension for matchID.
func (s *Store) UpsertH2H(_ context.Context, matchID string, h model.MatchH2H) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.MatchID = matchID
	s.h2h[matchID] = h
	return nil
}

// SetMatchDate records the authoritative date and internal id.
func (s *Store) SetMatchDate(_ context.Context, matchID string, date *time.Time, internalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil
	}
	if date != nil {
		d := *date
		m.Date = &d
	}
	if internalID != "" {
		m.InternalID = internalID
	}
	m.UpdatedAt = s.Now()
	s.matches[matchID] = m
	return nil
}

// FetchAssembled joins the match with its extensions.
func (s *Store) FetchAssembled(_ context.Context, matchID string) (store.Assembled, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return store.Assembled{}, store.ErrNotFound
	}
	out := store.Assembled{Match: m}
	if d, ok := s.details[matchID]; ok {
		d := d
		out.Details = &d
	}
	if h, ok := s.h2h[matchID]; ok {
		h := h
		out.H2H = &h
	}
	return out, nil
}

// RequeueStale sweeps stale queued records back to pending.
func (s *Store) RequeueStale(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset := 0
	now := s.Now()
	for id, m := range s.matches {
		if m.Status != model.StatusQueued || !m.UpdatedAt.Before(olderThan) {
			continue
		}
		m.Status = model.StatusPending
		m.UpdatedAt = now
		s.matches[id] = m
		reset++
	}
	return reset, nil
}

// InsertLeagues inserts leagues, skipping existing (country, league) pairs.
func (s *Store) InsertLeagues(_ context.Context, leagues []model.League) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, l := range leagues {
		key := model.ExclusionKey(l.Country, l.League)
		if _, exists := s.leagues[key]; exists {
			continue
		}
		s.leagues[key] = l
		inserted++
	}
	return inserted, nil
}

// SaveCheckpoint overwrites the singleton for its kind.
func (s *Store) SaveCheckpoint(_ context.Context, cp model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.UpdatedAt = s.Now()
	s.checkpoints[cp.Kind] = cp
	return nil
}

// LoadCheckpoint returns the checkpoint for kind.
func (s *Store) LoadCheckpoint(_ context.Context, kind string) (model.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[kind]
	if !ok {
		return model.Checkpoint{}, store.ErrNotFound
	}
	return cp, nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() {}

var _ store.Store = (*Store)(nil)
