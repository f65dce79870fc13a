package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/10aburnett/popuppromocodes-script/internal/capture"
	"github.com/10aburnett/popuppromocodes-script/internal/engine"
	"github.com/10aburnett/popuppromocodes-script/internal/store"
)

// scanEnv holds the initialized store, browser driver, and engine shared by
// the scan/batch/backfill commands.
type scanEnv struct {
	Store   store.Store
	Browser *capture.ChromeDriver
	Engine  *engine.Engine
}

// Close releases resources held by the environment.
func (e *scanEnv) Close() {
	if e.Browser != nil {
		_ = e.Browser.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured checkpoint store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DSN)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DSN)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initScanEnv sets up the store, the capture browser, and the engine.
// Callers should defer env.Close().
func initScanEnv(ctx context.Context) (*scanEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := capture.DefaultChromeOptions()
	opts.Headless = cfg.Browser.Headless
	opts.UserAgent = cfg.Browser.UserAgent
	opts.ExecPath = cfg.Browser.ExecPath
	if cfg.Browser.BodyLimitKB > 0 {
		opts.BodyLimit = cfg.Browser.BodyLimitKB * 1024
	}
	browser := capture.NewChromeDriver(ctx, opts)

	eng := engine.New(browser, cfg.Scan.AppDomain,
		engine.WithSettle(time.Duration(cfg.Scan.SettleMs)*time.Millisecond),
	)

	return &scanEnv{Store: st, Browser: browser, Engine: eng}, nil
}

// scanTimeout returns the configured bound for each quiescence wait.
func scanTimeout() time.Duration {
	return time.Duration(cfg.Scan.TimeoutSecs) * time.Second
}
