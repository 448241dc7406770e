package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"

	"mesgd/internal/sweep"
	"mesgd/pkg/api"
	"mesgd/pkg/auth"
	"mesgd/pkg/banner"
	"mesgd/pkg/httpx"
	"mesgd/pkg/logger"
	"mesgd/pkg/telemetry"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}

func (a *App) startSweeper(ctx context.Context) (context.CancelFunc, error) {
	return sweep.Start(ctx, a.eff.Config.Sweep, a.fac)
}

// buildHandler assembles the full serving stack: API router, operational
// endpoints, gateway middleware, then telemetry outermost.
func (a *App) buildHandler() http.Handler {
	probe := httpx.NetHTTP(httpx.Probe(a.st.Ready, a.version))

	mux := http.NewServeMux()
	mux.Handle("/healthz", probe)
	mux.Handle("/readyz", probe)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Router(a.fac, a.blobs))

	wrapped := auth.Middleware(a.eff.Config.Security)(mux)
	return telemetry.Middleware(wrapped)
}

// startHTTP starts the main server, plus a separate fasthttp probe
// listener when configured, and returns a channel with any fatal error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	a.srv = &http.Server{Addr: a.eff.Addr, Handler: a.buildHandler()}

	errCh := make(chan error, 2)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		var err error
		if cert != "" && key != "" {
			err = a.srv.ListenAndServeTLS(cert, key)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if addr := a.eff.Config.Server.ProbeAddress; addr != "" {
		probe := httpx.Probe(a.st.Ready, a.version)
		switch a.eff.Config.Server.Engine {
		case "fasthttp":
			logger.Info("probe_listener_starting", "addr", addr, "engine", "fasthttp")
			go func() {
				if err := fasthttp.ListenAndServe(addr, httpx.FastHTTP(probe)); err != nil {
					errCh <- err
				}
			}()
		default:
			logger.Info("probe_listener_starting", "addr", addr, "engine", "nethttp")
			a.probeSrv = &http.Server{Addr: addr, Handler: httpx.NetHTTP(probe)}
			go func() {
				if err := a.probeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()
		}
	}
	return errCh
}

func (a *App) shutdownHTTP() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if a.probeSrv != nil {
		if err := a.probeSrv.Shutdown(ctx); err != nil {
			logger.Warn("probe_shutdown_error", "error", err)
		}
	}
}
