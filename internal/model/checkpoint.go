package model

import "time"

// CheckpointKindDiscovery names the singleton checkpoint written by the
// discovery/enumeration pass.
const CheckpointKindDiscovery = "discovery"

// CheckpointCounters aggregates progress totals across a run.
type CheckpointCounters struct {
	TeamsSeen      int       `json:"teamsSeen"`
	TeamsDone      int       `json:"teamsDone"`
	MatchesScraped int       `json:"matchesScraped"`
	StartedAt      time.Time `json:"startedAt"`
	ElapsedSeconds int64     `json:"elapsedSeconds"`
}

// Checkpoint is the singleton resumability record for a long-running
// enumeration pass. Overwritten in place; one per pipeline run kind.
type Checkpoint struct {
	Kind      string             `json:"kind"`
	Country   string             `json:"country"`
	League    string             `json:"league"`
	Team      string             `json:"team"`
	Index     int64              `json:"index"` // next scrape id to assign
	Counters  CheckpointCounters `json:"counters"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
