package scrape

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/scorelines/matchpipe/internal/model"
)

const kickoffLayout = "02.01.2006 15:04"

// ParseSummary extracts the summary payload from a rendered match page. It
// is pure so it can be unit-tested on fixture HTML.
func ParseSummary(html, matchID string) (*model.MatchDetails, *model.DateInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	home := strings.TrimSpace(doc.Find(".duelParticipant__home .participant__participantName").First().Text())
	away := strings.TrimSpace(doc.Find(".duelParticipant__away .participant__participantName").First().Text())
	if home == "" || away == "" {
		return nil, nil, fmt.Errorf("summary selectors missing team names")
	}

	details := &model.MatchDetails{
		MatchID: matchID,
		Home:    model.TeamInfo{Name: home},
		Away:    model.TeamInfo{Name: away},
		BasicInfo: model.BasicInfo{
			Stage:   strings.TrimSpace(doc.Find(".tournamentHeader__country").First().Text()),
			Kickoff: strings.TrimSpace(doc.Find(".duelParticipant__startTime").First().Text()),
		},
		ScrapedAt: time.Now().UTC(),
	}
	details.BasicInfo.HomeScore, details.BasicInfo.AwayScore = parseScore(doc)
	details.Events = parseEvents(doc)

	var dateInfo *model.DateInfo
	if kickoff, err := time.Parse(kickoffLayout, details.BasicInfo.Kickoff); err == nil {
		date := kickoff.UTC()
		dateInfo = &model.DateInfo{
			Date:       date,
			InternalID: model.InternalID(&date, home, away),
		}
		details.InternalID = dateInfo.InternalID
	} else {
		// No reliable date yet; the internal id stays provisional.
		details.InternalID = model.InternalID(nil, home, away)
	}
	return details, dateInfo, nil
}

func parseScore(doc *goquery.Document) (int, int) {
	spans := doc.Find(".detailScore__wrapper span")
	if spans.Length() < 3 {
		return 0, 0
	}
	home, _ := strconv.Atoi(strings.TrimSpace(spans.Eq(0).Text()))
	away, _ := strconv.Atoi(strings.TrimSpace(spans.Eq(2).Text()))
	return home, away
}

func parseEvents(doc *goquery.Document) []model.Event {
	var events []model.Event
	doc.Find(".smv__participantRow").Each(func(_ int, row *goquery.Selection) {
		minute, ok := parseMinute(row.Find(".smv__timeBox").First().Text())
		if !ok {
			return
		}
		player := strings.TrimSpace(row.Find(".smv__playerName").First().Text())
		if player == "" {
			return
		}
		ev := model.Event{
			Minute: minute,
			Type:   classifyEvent(row),
			Player: player,
			Assist: strings.TrimSpace(row.Find(".smv__assist").First().Text()),
		}
		if ev.Type == model.EventOwnGoal {
			ev.OwnGoal = true
		}
		events = append(events, ev)
	})
	return events
}

// parseMinute handles "45'", "45+2'" (stoppage time collapses onto the base
// minute) and bare numbers.
func parseMinute(raw string) (int, bool) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "'")
	if i := strings.IndexByte(raw, '+'); i >= 0 {
		raw = raw[:i]
	}
	minute, err := strconv.Atoi(raw)
	if err != nil || minute < 0 {
		return 0, false
	}
	return minute, true
}

func classifyEvent(row *goquery.Selection) model.EventType {
	switch {
	case row.Find(".footballOwnGoal-ico").Length() > 0:
		return model.EventOwnGoal
	case row.Find(".soccer").Length() > 0:
		return model.EventGoal
	case row.Find(".yellowCard-ico").Length() > 0:
		return model.EventYellowCard
	case row.Find(".redCard-ico").Length() > 0:
		return model.EventRedCard
	case row.Find(".substitution").Length() > 0:
		return model.EventSubstitution
	default:
		return model.EventOther
	}
}

// ParseH2H extracts head-to-head sections from a rendered h2h page.
func ParseH2H(html, matchID string) (*model.MatchH2H, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	h2h := &model.MatchH2H{MatchID: matchID, ScrapedAt: time.Now().UTC()}
	doc.Find(".h2h__section").Each(func(_ int, section *goquery.Selection) {
		block := model.H2HSection{
			Title: strings.TrimSpace(section.Find(".section__title").First().Text()),
		}
		section.Find(".h2h__row").Each(func(_ int, row *goquery.Selection) {
			block.Rows = append(block.Rows, model.H2HRow{
				Date:  strings.TrimSpace(row.Find(".h2h__date").First().Text()),
				Home:  strings.TrimSpace(row.Find(".h2h__homeParticipant").First().Text()),
				Away:  strings.TrimSpace(row.Find(".h2h__awayParticipant").First().Text()),
				Score: strings.TrimSpace(row.Find(".h2h__result").First().Text()),
			})
		})
		if block.Title != "" || len(block.Rows) > 0 {
			h2h.Sections = append(h2h.Sections, block)
		}
	})
	return h2h, nil
}
