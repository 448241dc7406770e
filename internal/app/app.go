package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"mesgd/pkg/blob"
	"mesgd/pkg/config"
	"mesgd/pkg/facade"
	"mesgd/pkg/logger"
	"mesgd/pkg/store"
	"mesgd/pkg/validation"
)

// App encapsulates the server components and lifecycle. Everything is
// injected and owned here; there is no global state to reset between
// instances.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	st     *store.Store
	fac    *facade.Facade
	blobs  *blob.FS
	cancel context.CancelFunc

	srv      *http.Server
	probeSrv *http.Server
}

// New validates config, opens the store and wires the domain components.
// It does not start the HTTP server or the sweeper; call Run for those.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	initValidation(eff)

	st, err := store.Open(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	blobs, err := blob.NewFS(eff.Config.Blob.Dir, eff.Config.Blob.BaseURL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fac := facade.New(st, eff.Config.Hub.BufferSize, eff.Config.Status.DefaultTTL.Duration())

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		st:        st,
		fac:       fac,
		blobs:     blobs,
	}, nil
}

// Facade exposes the domain entry point, mainly for tests.
func (a *App) Facade() *facade.Facade { return a.fac }

// Run starts the sweeper and the HTTP server(s) and blocks until ctx is
// cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	cancelSweep, err := a.startSweeper(ctx)
	if err != nil {
		return err
	}
	defer cancelSweep()

	cancelMetrics := a.st.StartMetricsPoller(ctx, 15*time.Second)
	defer cancelMetrics()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		a.fac.Close()
		if cerr := a.st.Close(); cerr != nil {
			logger.Error("store_close_failed", "error", cerr)
		}
		return nil
	case err := <-errCh:
		a.fac.Close()
		_ = a.st.Close()
		return err
	}
}

// initValidation installs request shape limits from config.
func initValidation(eff config.EffectiveConfigResult) {
	validation.SetLimits(validation.Limits{
		MaxPayloadBytes: eff.Config.Limits.MaxPayloadBytes.Int64(),
		MinTTL:          eff.Config.Status.MinTTL.Duration(),
		MaxTTL:          eff.Config.Status.MaxTTL.Duration(),
	})
}
