package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/proxsync/proxsync/pkg/api"
	"github.com/proxsync/proxsync/pkg/auth"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/log"
	"github.com/proxsync/proxsync/pkg/syncer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and the periodic sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.WithComponent("serve")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.BootstrapDefaultData(ctx); err != nil {
			return err
		}

		s := syncer.New(db.DB, cfg.Sync, nil)
		jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
		server := api.NewServer(cfg, db, jwtManager, repositories.NewConnectionRepository(db.DB), s)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return s.Run(gctx, cfg.Sync.Interval)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info().Msg("Shutdown signal received")

			// Give the server 30 seconds to finish current requests
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info().Msg("Server exited")
		return nil
	},
}
