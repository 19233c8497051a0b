// Package scrape fetches match pages with headless Chrome and extracts the
// summary payload the pipeline stores. The pipeline itself only depends on
// the worker.Scraper interface; this is the default producer behind it.
package scrape

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/model"
)

// Config controls the headless browser.
type Config struct {
	BaseURL   string
	UserAgent string
}

// ChromeScraper drives one headless browser. A worker holds exclusive use of
// it; matches are scraped one at a time.
type ChromeScraper struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	cfg             Config
	logger          *zap.Logger
}

// NewChromeScraper starts the browser and warms it up so a broken Chrome
// install fails at startup rather than mid-shard.
func NewChromeScraper(cfg Config, logger *zap.Logger) (*ChromeScraper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &ChromeScraper{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (s *ChromeScraper) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocatorCancel()
}

// ScrapeSummary renders the match summary page and parses it. The caller's
// context bounds the whole attempt (nominally 20s); a timeout surfaces as an
// ordinary per-match error.
func (s *ChromeScraper) ScrapeSummary(ctx context.Context, matchID string) (*model.MatchDetails, *model.DateInfo, error) {
	pageURL := fmt.Sprintf("%s/match/%s/#/match-summary", s.cfg.BaseURL, matchID)

	html, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	details, dateInfo, err := ParseSummary(html, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	s.logger.Debug("summary scraped",
		zap.String("match_id", matchID),
		zap.Int("events", len(details.Events)),
	)
	return details, dateInfo, nil
}

func (s *ChromeScraper) fetch(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(s.cfg.UserAgent),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(".duelParticipant", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

// forwardCancel propagates the caller's deadline into the tab context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
