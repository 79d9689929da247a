package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-realtime-core/identity"
	"github.com/jrsteele09/go-realtime-core/internal/config"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/server"
	"github.com/jrsteele09/go-realtime-core/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		logx.Logger().Fatal().Err(err).Msg("Error running server")
	}
	logx.Logger().Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Logger().Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	logx.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := token.NewMetrics(registry)
	issuers := server.Issuers{
		Chat:  token.NewChatService(c, token.WithMetrics(metrics)),
		Video: token.NewVideoService(c, token.WithMetrics(metrics)),
	}

	resolver, err := newResolver(c)
	if err != nil {
		return err
	}
	handler, err := server.New(c, issuers, resolver, registry)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// newResolver trusts proxy headers, and also verifies bearer ID tokens when
// an OIDC issuer is configured.
func newResolver(c config.EnvConfig) (identity.Resolver, error) {
	if c.GetOIDCIssuer() == "" {
		return identity.HeaderResolver{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	oidcResolver, err := identity.NewOIDCResolver(ctx, c.GetOIDCIssuer(), c.GetOIDCClientID())
	if err != nil {
		return nil, fmt.Errorf("identity.NewOIDCResolver: %w", err)
	}
	return identity.ChainResolver{oidcResolver, identity.HeaderResolver{}}, nil
}

func listenAndServe(server *http.Server) error {
	logx.Logger().Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
