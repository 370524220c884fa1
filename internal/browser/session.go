package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/lkschedule/schedule-sync/internal/logger"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/storage"
)

const (
	DefaultTimeout = 30 * time.Second

	readyTimeout = 10 * time.Second
	pollInterval = 500 * time.Millisecond
	settleDelay  = 500 * time.Millisecond
)

// ErrLoginRequired means the portal kept showing the login page after the credentials
// were submitted, typically because a captcha or second factor is required. Rerun
// with a visible browser to complete the login by hand.
var ErrLoginRequired = errors.New("still on the login page: captcha or 2FA may be required")

var (
	// LoginSelectors are tried in order to find the login input.
	LoginSelectors = []string{
		`input[name*='login' i]`,
		`input[name*='user' i]`,
		`input[type='email']`,
		`input[type='text']`,
	}
	PasswordSelector = `input[type='password']`
	SubmitSelector   = `button[type='submit']`
)

// Options configures a Session.
type Options struct {
	LoginURL    string
	ScheduleURL string
	Login       string
	Password    string
	// ReadySelector is waited for after navigating to a week page.
	ReadySelector string
	Headful       bool
	Timeout       time.Duration
	ExecPath      string
}

// Session is a logged-in browser tab.
type Session struct {
	opts  Options
	store *storage.Storage

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	loggedIn bool
}

// Open starts the browser and restores saved cookies. The browser outlives
// cancellation of ctx so that Close can still save the session state.
func Open(ctx context.Context, opts Options, store *storage.Storage) (*Session, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ScheduleURL == "" {
		opts.ScheduleURL = scraper.DefaultScheduleURL
	}
	if opts.ReadySelector == "" {
		opts.ReadySelector = scraper.DefaultSelectors().Root
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Headful),
		chromedp.WindowSize(1366, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	bctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:        opts,
		store:       store,
		ctx:         bctx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}

	// Starts the browser.
	if err := chromedp.Run(bctx); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	if err := s.restoreState(); err != nil {
		logger.Warn("could not restore session state", logger.Fields{"error": err.Error()})
	}
	return s, nil
}

func (s *Session) restoreState() error {
	if s.store == nil {
		return nil
	}
	state, err := s.store.LoadSessionState()
	if err != nil {
		return err
	}

	now := time.Now()
	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		if expired(c, now) {
			continue
		}
		params = append(params, toParam(c))
	}
	if len(params) == 0 {
		return nil
	}

	if err := s.run(context.Background(), network.SetCookies(params)); err != nil {
		return fmt.Errorf("setting cookies: %w", err)
	}
	logger.Debug("restored session cookies", logger.Fields{"count": len(params)})
	return nil
}

// run executes actions in the browser tab, bounded by the navigation timeout and by
// ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (s *Session) location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// firstPresent returns the first selector matching at least one node.
func (s *Session) firstPresent(ctx context.Context, selectors ...string) (string, error) {
	for _, sel := range selectors {
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
			return "", err
		}
		if len(nodes) > 0 {
			return sel, nil
		}
	}
	return "", nil
}

// EnsureLogin logs in unless the saved session is still valid.
func (s *Session) EnsureLogin(ctx context.Context) error {
	if s.loggedIn {
		return nil
	}

	if err := s.run(ctx, chromedp.Navigate(s.opts.LoginURL)); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}
	loc, err := s.location(ctx)
	if err != nil {
		return err
	}

	if strings.HasPrefix(loc, s.opts.LoginURL) {
		if err := s.submitCredentials(ctx); err != nil {
			return err
		}
	}

	if err := s.run(ctx, chromedp.Navigate(s.opts.ScheduleURL)); err != nil {
		return fmt.Errorf("opening schedule (captcha or 2FA may be required): %w", err)
	}
	loc, err = s.location(ctx)
	if err != nil {
		return err
	}
	if strings.HasPrefix(loc, s.opts.LoginURL) {
		return ErrLoginRequired
	}

	s.loggedIn = true
	logger.Info("logged in", logger.Fields{"url": loc})
	return nil
}

func (s *Session) submitCredentials(ctx context.Context) error {
	logger.Info("attempting login", logger.Fields{"url": s.opts.LoginURL})

	loginSel, err := s.firstPresent(ctx, LoginSelectors...)
	if err != nil {
		return err
	}
	passwordSel, err := s.firstPresent(ctx, PasswordSelector)
	if err != nil {
		return err
	}
	if loginSel == "" || passwordSel == "" {
		return errors.New("unable to locate login form fields")
	}

	err = s.run(ctx,
		chromedp.SetValue(loginSel, "", chromedp.ByQuery),
		chromedp.SendKeys(loginSel, s.opts.Login, chromedp.ByQuery),
		chromedp.SetValue(passwordSel, "", chromedp.ByQuery),
		chromedp.SendKeys(passwordSel, s.opts.Password, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("filling login form: %w", err)
	}

	submitSel, err := s.firstPresent(ctx, SubmitSelector)
	if err != nil {
		return err
	}
	submit := chromedp.SendKeys(passwordSel, kb.Enter, chromedp.ByQuery)
	if submitSel != "" {
		submit = chromedp.Click(submitSel, chromedp.ByQuery)
	}
	if err := s.run(ctx, submit); err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}

	s.waitForRedirect(ctx)
	return nil
}

// waitForRedirect polls until the tab leaves the login page or the timeout expires.
func (s *Session) waitForRedirect(ctx context.Context) {
	deadline := time.Now().Add(s.opts.Timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
		loc, err := s.location(ctx)
		if err == nil && !strings.HasPrefix(loc, s.opts.LoginURL) {
			return
		}
	}
}

// FetchWeek returns the rendered schedule page for [from, to]. When the schedule root
// does not appear the page is returned anyway so that extraction can report what is
// missing.
func (s *Session) FetchWeek(ctx context.Context, from, to time.Time) (string, error) {
	if err := s.EnsureLogin(ctx); err != nil {
		return "", err
	}

	target, err := scraper.WeekURL(s.opts.ScheduleURL, from, to)
	if err != nil {
		return "", err
	}
	logger.Info("fetching schedule", logger.Fields{"url": target})

	if err := s.run(ctx, chromedp.Navigate(target), chromedp.Sleep(settleDelay)); err != nil {
		return "", fmt.Errorf("opening %s: %w", target, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	err = s.run(waitCtx, chromedp.WaitReady(s.opts.ReadySelector, chromedp.ByQuery))
	cancel()
	if err != nil {
		logger.Warn("schedule root did not appear", logger.Fields{
			"selector": s.opts.ReadySelector,
			"error":    err.Error(),
		})
	}

	var page string
	if err := s.run(ctx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page HTML: %w", err)
	}
	return page, nil
}

// Screenshot captures the full current page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// SaveState persists the current cookies.
func (s *Session) SaveState() error {
	if s.store == nil {
		return nil
	}

	var cookies []*network.Cookie
	err := s.run(context.Background(), chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("reading cookies: %w", err)
	}

	state := &storage.SessionState{Cookies: make([]storage.Cookie, 0, len(cookies))}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, toStored(c))
	}
	if err := s.store.SaveSessionState(state); err != nil {
		return err
	}
	logger.Debug("saved session state", logger.Fields{"cookies": len(cookies)})
	return nil
}

// Close saves the session state and shuts the browser down.
func (s *Session) Close() error {
	err := s.SaveState()
	s.shutdown()
	return err
}

func (s *Session) shutdown() {
	s.cancel()
	s.allocCancel()
}
