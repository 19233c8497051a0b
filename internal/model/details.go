package model

import "time"

// BasicInfo holds the headline facts scraped from a match summary page.
type BasicInfo struct {
	Kickoff   string `json:"kickoff,omitempty"`
	Stage     string `json:"stage,omitempty"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
}

// TeamInfo identifies one side of a match.
type TeamInfo struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// MatchDetails is the one-to-one extension of a Match holding the scraped
// summary payload. Upserted keyed by MatchID; created lazily, never
// duplicated.
type MatchDetails struct {
	MatchID    string    `json:"matchId"`
	InternalID string    `json:"internalId,omitempty"`
	BasicInfo  BasicInfo `json:"basicInfo"`
	Home       TeamInfo  `json:"homeTeam"`
	Away       TeamInfo  `json:"awayTeam"`
	Events     []Event   `json:"events"`
	Status     Status    `json:"processingStatus"`
	ScrapedAt  time.Time `json:"scrapedAt"`
}

// H2HRow is one past meeting listed in a head-to-head section.
type H2HRow struct {
	Date  string `json:"date"`
	Home  string `json:"home"`
	Away  string `json:"away"`
	Score string `json:"score"`
}

// H2HSection is one block of the head-to-head page (overall, home, away).
type H2HSection struct {
	Title string   `json:"title"`
	Rows  []H2HRow `json:"rows"`
}

// MatchH2H is the one-to-one extension holding head-to-head sections, with
// the same upsert discipline as MatchDetails.
type MatchH2H struct {
	MatchID   string       `json:"matchId"`
	Sections  []H2HSection `json:"sections"`
	ScrapedAt time.Time    `json:"scrapedAt"`
}
