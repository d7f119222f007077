// Package browser drives a local Chrome through the signed-in history page
// and exposes it as a feed.Source.
package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/feed"
	"github.com/sells-group/watchlog/internal/scan"
)

// DefaultHistoryURL is the watch-history page.
const DefaultHistoryURL = "https://www.youtube.com/feed/history"

// Config controls the browser session.
type Config struct {
	HistoryURL string
	// UserDataDir keeps the Chrome profile, and with it the login, between runs.
	UserDataDir  string
	Headless     bool
	LoginTimeout time.Duration
	// LoadWait is how long to let the page render after navigation or scroll.
	LoadWait     time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryURL == "" {
		c.HistoryURL = DefaultHistoryURL
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 4 * time.Minute
	}
	if c.LoadWait <= 0 {
		c.LoadWait = 3 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	return c
}

// Source is a feed.Source backed by a live browser tab.
type Source struct {
	cfg         Config
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

var (
	_ feed.Source        = (*Source)(nil)
	_ feed.Authenticator = (*Source)(nil)
)

// Open starts Chrome and navigates to the history page. Close must be called
// to shut the browser down.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	cfg = cfg.withDefaults()

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 1600),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(zap.S().Debugf),
		chromedp.WithErrorf(zap.S().Debugf),
	)

	s := &Source{cfg: cfg, ctx: tabCtx, cancelAlloc: cancelAlloc, cancelTab: cancelTab}
	if err := chromedp.Run(tabCtx, chromedp.Navigate(cfg.HistoryURL), chromedp.Sleep(cfg.LoadWait)); err != nil {
		s.Close()
		return nil, eris.Wrapf(err, "browser: open %s", cfg.HistoryURL)
	}
	zap.L().Info("browser: history page opened", zap.String("url", cfg.HistoryURL), zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Close shuts down the tab and the browser process.
func (s *Source) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// EnsureSignedIn waits until the tab sits on the history page rather than a
// sign-in page, then applies the "Videos" filter chip. It fails with
// scan.ErrNotSignedIn when LoginTimeout passes first.
func (s *Source) EnsureSignedIn(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.LoginTimeout)
	prompted := false
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "browser: waiting for sign-in")
		}

		var loc, body string
		err := chromedp.Run(s.ctx,
			chromedp.Location(&loc),
			chromedp.Evaluate(`document.body ? document.body.innerText.slice(0, 4000) : ""`, &body),
		)
		if err != nil {
			return eris.Wrap(err, "browser: read location")
		}
		if SignedIn(loc, body) {
			break
		}
		if !prompted {
			zap.L().Warn("browser: please sign in in the opened window", zap.Duration("timeout", s.cfg.LoginTimeout))
			prompted = true
		}
		if time.Now().After(deadline) {
			return eris.Wrapf(scan.ErrNotSignedIn, "browser: no session after %s", s.cfg.LoginTimeout)
		}
		if err := chromedp.Run(s.ctx, chromedp.Sleep(s.cfg.PollInterval)); err != nil {
			return eris.Wrap(err, "browser: wait for sign-in")
		}
	}

	if prompted {
		zap.L().Info("browser: sign-in detected")
		if err := chromedp.Run(s.ctx, chromedp.Navigate(s.cfg.HistoryURL), chromedp.Sleep(s.cfg.LoadWait)); err != nil {
			return eris.Wrap(err, "browser: reload history")
		}
	}
	s.applyVideosFilter()
	return nil
}

// clickVideosChip clicks the filter chip labeled "Videos" and reports
// whether one was found.
const clickVideosChip = `(() => {
  for (const chip of document.querySelectorAll('yt-chip-cloud-chip-renderer')) {
    if ((chip.innerText || '').trim() === 'Videos') { chip.click(); return true; }
  }
  return false;
})()`

// applyVideosFilter hides short-form items when the page offers the filter.
// Shorts are also rejected by link, so a missing chip is only logged.
func (s *Source) applyVideosFilter() {
	var clicked bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(clickVideosChip, &clicked)); err != nil {
		zap.L().Warn("browser: videos filter failed", zap.Error(err))
		return
	}
	if !clicked {
		zap.L().Warn("browser: videos filter chip not found")
		return
	}
	_ = chromedp.Run(s.ctx, chromedp.Sleep(s.cfg.LoadWait))
	zap.L().Debug("browser: videos filter applied")
}

// NextBatch parses the currently rendered page.
func (s *Source) NextBatch(ctx context.Context) ([]feed.Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, eris.Wrap(err, "browser: read page")
	}
	return feed.ParseSections(strings.NewReader(html))
}

// LoadMore scrolls to the bottom and reports whether the page grew.
func (s *Source) LoadMore(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var before, after float64
	err := chromedp.Run(s.ctx,
		chromedp.Evaluate(`document.documentElement.scrollHeight`, &before),
		chromedp.Evaluate(`window.scrollTo(0, document.documentElement.scrollHeight)`, nil),
		chromedp.Sleep(s.cfg.LoadWait),
		chromedp.Evaluate(`document.documentElement.scrollHeight`, &after),
	)
	if err != nil {
		return false, eris.Wrap(err, "browser: scroll")
	}
	return after > before, nil
}

// SignedIn reports whether the tab shows the history page of a signed-in
// session, judged by its URL and visible text.
func SignedIn(location, bodyText string) bool {
	loc := strings.ToLower(location)
	if strings.Contains(loc, "accounts.google.com") || !strings.Contains(loc, "/feed/history") {
		return false
	}
	return !strings.Contains(bodyText, "Sign in to see") && !strings.Contains(bodyText, "History isn't viewable when signed out")
}
