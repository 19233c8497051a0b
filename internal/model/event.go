package model

// EventType classifies a timed in-match occurrence.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventOwnGoal      EventType = "ownGoal"
	EventYellowCard   EventType = "yellowCard"
	EventRedCard      EventType = "redCard"
	EventSubstitution EventType = "substitution"
	EventOther        EventType = "other"
)

// Event is one timed occurrence within a match. The source does not assign
// event ids; identity is inferred from (Minute, Type, Player).
type Event struct {
	Minute  int       `json:"minute"`
	Type    EventType `json:"type"`
	Player  string    `json:"player"`
	Assist  string    `json:"assist,omitempty"`
	OwnGoal bool      `json:"isOwnGoal,omitempty"`
}

// Key returns the inferred identity of the event. Two sightings with equal
// keys are treated as the same real event.
type EventKey struct {
	Minute int
	Type   EventType
	Player string
}

// Key builds the identity tuple for deduplication.
func (e Event) Key() EventKey {
	return EventKey{Minute: e.Minute, Type: e.Type, Player: e.Player}
}
