// Package model defines the entities shared by the crawl pipeline: matches,
// their scraped extensions, timed events, and the discovery checkpoint.
package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a match record. Records move forward
// through statuses and never regress, except when a stale queued record is
// swept back to pending.
type Status string

const (
	StatusPending         Status = "pending"
	StatusQueued          Status = "queued"
	StatusSummaryPending  Status = "summary_pending"
	StatusSummaryComplete Status = "summary_complete"
	StatusH2HPending      Status = "h2h_pending"
	StatusComplete        Status = "complete"
	// StatusFailed is never written by the pipeline itself; terminal failure
	// is a read-time filter on the attempt counter. The value exists for
	// operator tooling that wants to park a record explicitly.
	StatusFailed Status = "failed"
)

// Match is one crawlable unit: a fixture discovered from a team's result
// list, identified by the site-assigned id.
type Match struct {
	MatchID    string     `json:"matchId"`
	InternalID string     `json:"internalId,omitempty"`
	Country    string     `json:"country"`
	League     string     `json:"league"`
	Team       string     `json:"team"`
	Date       *time.Time `json:"date,omitempty"`
	ScrapedAt  time.Time  `json:"scrapedAt"`
	Status     Status     `json:"processingStatus"`
	Attempts   int        `json:"processingAttempts"`
	// ScrapeID is a monotonic sequence number assigned at discovery time.
	// Zero means the record predates scrape ids and sorts by ScrapedAt.
	ScrapeID  int64     `json:"scrapeId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ExclusionKey is the opaque composite key used to exclude a whole
// (country, league) pair from selection.
func ExclusionKey(country, league string) string {
	return country + "-" + league
}

// DateInfo carries the authoritative kickoff date resolved during scraping,
// together with the internal id recomputed from it.
type DateInfo struct {
	Date       time.Time `json:"date"`
	InternalID string    `json:"internalId"`
}

// InternalID builds the content-addressed match identity: kickoff date plus
// normalized team names. The same real-world match scraped under different
// site ids collapses onto one internal id.
func InternalID(date *time.Time, home, away string) string {
	day := "unknown-date"
	if date != nil && !date.IsZero() {
		day = date.UTC().Format("2006-01-02")
	}
	return day + "|" + normalizeTeam(home) + "|" + normalizeTeam(away)
}

func normalizeTeam(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "|", " ")
	return strings.Join(strings.Fields(name), " ")
}

// League is one competition discovered from the site index; it drives team
// enumeration during discovery.
type League struct {
	Country      string    `json:"country"`
	League       string    `json:"league"`
	URL          string    `json:"url"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}
