package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/chessdream/chessd/internal/auth"
	"github.com/chessdream/chessd/internal/config"
	"github.com/chessdream/chessd/internal/session"
	"github.com/chessdream/chessd/internal/store"
	"github.com/chessdream/chessd/internal/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.host and server.port"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			addr := cmd.String("addr")
			if addr == "" {
				addr = cfg.Server.Addr()
			}
			return serve(ctx, cfg, addr)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, addr string) (err error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
	}()

	hub := web.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	registry := session.NewRegistry(st,
		session.WithRegistryObserver(hub),
		session.WithSnapshotInterval(cfg.Game.SnapshotInterval),
		session.WithAbandonTimeout(cfg.Game.AbandonTimeout),
	)

	recovered, err := registry.Recover(ctx)
	if err != nil {
		// Games that failed to load stay in the store for the next start.
		log.Error().Err(err).Int("recovered", recovered).Msg("Some games could not be recovered")
	} else {
		log.Info().Int("recovered", recovered).Msg("Recovered active games")
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go registry.Run(runCtx)

	var identifier auth.Identifier = auth.HeaderIdentifier{}
	if cfg.Auth.Enabled {
		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		identifier = verifier
	} else {
		log.Warn().Msg("Auth disabled; trusting the " + auth.PlayerHeader + " header")
	}

	service := web.NewService(registry, hub, cfg, identifier)
	srv := &http.Server{
		Addr:         addr,
		Handler:      service.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("Starting chessd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	stopRun()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	stopHub()

	log.Info().Msg("chessd exited")
	return result.ErrorOrNil()
}
