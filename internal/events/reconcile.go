// Package events merges duplicate event sightings into a canonical
// per-match event list.
package events

import "github.com/scorelines/matchpipe/internal/model"

// Reconcile collapses duplicate sightings of the same event into one
// canonical record, preserving first-seen order.
//
// Identity is the (minute, type, player) tuple, the fields the source is
// assumed to report consistently across duplicate sightings. The first
// occurrence per key is canonical; repeat sightings contribute an assist the
// canonical record lacks, and the own-goal flag is ORed (never un-set).
//
// This is not a similarity merge: two sightings differing in any key field
// stay distinct, even if they describe the same real event misreported. Two
// genuinely distinct events sharing all three key fields would be merged
// incorrectly; the source data gives nothing stronger to key on.
//
// Reconcile is idempotent: running it over an already-deduplicated sequence
// returns an equal sequence.
func Reconcile(raw []model.Event) []model.Event {
	if len(raw) == 0 {
		return nil
	}
	out := make([]model.Event, 0, len(raw))
	index := make(map[model.EventKey]int, len(raw))
	for _, ev := range raw {
		key := ev.Key()
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, ev)
			continue
		}
		canonical := &out[at]
		if canonical.Assist == "" && ev.Assist != "" {
			canonical.Assist = ev.Assist
		}
		if ev.OwnGoal {
			canonical.OwnGoal = true
		}
	}
	return out
}
