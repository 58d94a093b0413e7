package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"tank-tracker/internal/config"
	"tank-tracker/internal/constants"
	"tank-tracker/internal/events"
	fxmodules "tank-tracker/internal/fx"
	"tank-tracker/internal/middleware"
	"tank-tracker/internal/server"
	"tank-tracker/internal/syncer"
	"tank-tracker/internal/transport"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runTracker),
	).Run()
}

func runTracker(
	lc fx.Lifecycle,
	srv *server.Server,
	cfg *config.Config,
	db *sql.DB,
	sched *syncer.Scheduler,
	reconciler *events.Reconciler,
	socket *transport.SocketClient,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(srv.Routes()))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go reconciler.Run(runCtx)
			go socket.Run(runCtx)
			go sched.Run(runCtx)

			go func() {
				loadCtx, loadCancel := context.WithTimeout(runCtx, constants.RequestTimeout)
				defer loadCancel()
				if err := sched.ColdLoad(loadCtx); err != nil {
					logger.Warn().Err(err).Msg("cold load failed")
				}
			}()

			go func() {
				logger.Info().Str("addr", httpSrv.Addr).Msg("dashboard api starting")
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("dashboard api failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()

			if err := sched.PersistNow(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("final snapshot flush failed")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database")
			}
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("dashboard api shutdown failed")
				return err
			}
			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
