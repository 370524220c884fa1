package cli

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"

	"github.com/lkschedule/schedule-sync/internal/browser"
	"github.com/lkschedule/schedule-sync/internal/config"
	"github.com/lkschedule/schedule-sync/internal/crypto"
	"github.com/lkschedule/schedule-sync/internal/gcal"
	"github.com/lkschedule/schedule-sync/internal/logger"
	"github.com/lkschedule/schedule-sync/internal/reconcile"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/storage"
)

// openStorage opens the data directory, encrypted when an encryption key is set.
func openStorage(cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.New(cfg.DataDir, crypto.NewEncryptor(cfg.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// openSource returns the configured week page source and a function releasing it.
// The browser source is logged in before it is returned.
func openSource(ctx context.Context, cfg *config.Config, store *storage.Storage, headful bool) (scraper.PageSource, func(), error) {
	if cfg.Source == config.SourceHTTP {
		logger.Info("fetching schedule over plain HTTP", logger.Fields{"url": cfg.ScheduleURL})
		return scraper.NewHTTPSource(cfg.ScheduleURL, cfg.HTTPCookie), func() {}, nil
	}

	session, err := openSession(ctx, cfg, store, headful)
	if err != nil {
		return nil, nil, err
	}
	return session, func() { closeSession(session) }, nil
}

// openSession starts the browser and logs in. The caller must Close the session.
func openSession(ctx context.Context, cfg *config.Config, store *storage.Storage, headful bool) (*browser.Session, error) {
	session, err := browser.Open(ctx, browser.Options{
		LoginURL:      cfg.LoginURL,
		ScheduleURL:   cfg.ScheduleURL,
		Login:         cfg.Credentials.Login,
		Password:      cfg.Credentials.Password,
		ReadySelector: cfg.Selectors.WithDefaults().Root,
		Headful:       headful || cfg.Browser.Headful,
		Timeout:       cfg.Browser.Timeout(),
		ExecPath:      cfg.Browser.ExecPath,
	}, store)
	if err != nil {
		return nil, err
	}

	if err := session.EnsureLogin(ctx); err != nil {
		closeSession(session)
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return session, nil
}

func closeSession(session *browser.Session) {
	if err := session.Close(); err != nil {
		logger.Warn("could not save session state", logger.Fields{"error": err.Error()})
	}
}

// newEngine authorizes against Google Calendar and returns the reconciliation engine
// for the configured calendar.
func newEngine(ctx context.Context, cfg *config.Config, store *storage.Storage, dryRun bool) (*reconcile.Engine, error) {
	secrets, err := cfg.ResolvePath(cfg.Google.ClientSecrets)
	if err != nil {
		return nil, err
	}
	tokenFile, err := cfg.ResolvePath(cfg.Google.TokenFile)
	if err != nil {
		return nil, err
	}

	oauthCfg, err := gcal.LoadOAuthConfig(secrets)
	if err != nil {
		return nil, err
	}
	ts, err := gcal.TokenSource(ctx, oauthCfg, store, tokenFile, gcal.LoopbackAuthorizer(os.Stderr))
	if err != nil {
		return nil, err
	}

	client, err := gcal.New(ctx, gcal.Options{
		ServerSideFilter: cfg.Google.ServerSideFilter,
		MaxRetries:       cfg.Google.MaxRetries,
	}, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}

	return reconcile.NewEngine(client, cfg.CalendarID, reconcile.Options{
		DryRun:      dryRun,
		Concurrency: cfg.Sync.ApplyConcurrency,
	}), nil
}
