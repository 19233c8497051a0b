package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/model"
)

// CollyCatalog enumerates the site's static listing pages with colly. Match
// pages need a browser, but the country/league index and team result lists
// are served as plain HTML.
type CollyCatalog struct {
	baseURL   string
	userAgent string
	logger    *zap.Logger
	collector *colly.Collector
}

// NewCollyCatalog constructs a catalog rooted at baseURL.
func NewCollyCatalog(baseURL, userAgent string, logger *zap.Logger) *CollyCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(30 * time.Second)
	return &CollyCatalog{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		logger:    logger,
		collector: c,
	}
}

// Leagues scrapes the competition index.
func (c *CollyCatalog) Leagues(ctx context.Context) ([]model.League, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		leagues  []model.League
		visitErr error
	)
	col := c.collector.Clone()
	col.OnHTML(".lmc__block", func(e *colly.HTMLElement) {
		country := strings.TrimSpace(e.ChildText(".lmc__country"))
		e.ForEach("a.lmc__templateHref", func(_ int, a *colly.HTMLElement) {
			name := strings.TrimSpace(a.Text)
			if country == "" || name == "" {
				return
			}
			leagues = append(leagues, model.League{
				Country:      country,
				League:       name,
				URL:          a.Request.AbsoluteURL(a.Attr("href")),
				DiscoveredAt: time.Now().UTC(),
			})
		})
	})
	col.OnError(func(resp *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", resp.Request.URL, err)
	})
	if err := col.Visit(c.baseURL + "/"); err != nil {
		return nil, fmt.Errorf("visit index: %w", err)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	c.logger.Info("leagues enumerated", zap.Int("count", len(leagues)))
	return leagues, nil
}

// Teams scrapes the league standings for team names.
func (c *CollyCatalog) Teams(ctx context.Context, league model.League) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		teams    []string
		seen     = map[string]struct{}{}
		visitErr error
	)
	col := c.collector.Clone()
	col.OnHTML(".tableCellParticipant__name", func(e *colly.HTMLElement) {
		name := strings.TrimSpace(e.Text)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		teams = append(teams, name)
	})
	col.OnError(func(resp *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", resp.Request.URL, err)
	})
	if err := col.Visit(league.URL + "standings/"); err != nil {
		return nil, fmt.Errorf("visit standings: %w", err)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return teams, nil
}

// Fixtures scrapes a team's result list. Row ids carry the site-assigned
// match id as the suffix of "g_1_<id>".
func (c *CollyCatalog) Fixtures(ctx context.Context, league model.League, team string) ([]Fixture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		fixtures []Fixture
		visitErr error
	)
	col := c.collector.Clone()
	col.OnHTML(".event__match", func(e *colly.HTMLElement) {
		matchID := parseRowID(e.Attr("id"))
		if matchID == "" {
			return
		}
		fixtures = append(fixtures, Fixture{
			MatchID: matchID,
			Home:    strings.TrimSpace(e.ChildText(".event__participant--home")),
			Away:    strings.TrimSpace(e.ChildText(".event__participant--away")),
			Date:    parseEventTime(e.ChildText(".event__time")),
		})
	})
	col.OnError(func(resp *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", resp.Request.URL, err)
	})
	url := fmt.Sprintf("%steam/%s/results/", league.URL, teamSlug(team))
	if err := col.Visit(url); err != nil {
		return nil, fmt.Errorf("visit results: %w", err)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return fixtures, nil
}

func parseRowID(raw string) string {
	const prefix = "g_1_"
	if !strings.HasPrefix(raw, prefix) {
		return ""
	}
	return raw[len(prefix):]
}

// parseEventTime handles "01.09. 18:30" rows; the year is resolved later
// from the summary page, so only fully-dated rows yield a date here.
func parseEventTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse("02.01.2006 15:04", raw)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func teamSlug(team string) string {
	slug := strings.ToLower(strings.TrimSpace(team))
	return strings.ReplaceAll(slug, " ", "-")
}
