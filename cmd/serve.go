package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/usecase"
	"clinic-booking/internal/wire"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var sweepEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(sweepEvery)
		},
	}
	cmd.Flags().DurationVar(&sweepEvery, "sweep-every", 0, "run the no-show sweep on this interval (0 disables it)")
	return cmd
}

func runServer(sweepEvery time.Duration) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.close()

	logger := rt.logger
	logger.Info("Starting application",
		zap.String("app", rt.config.App.Name),
		zap.String("port", rt.config.App.Port),
		zap.Bool("debug", rt.config.App.Debug),
	)

	events := openPublisher(rt.config.MQ, logger)
	defer events.Close()

	repos := repository.NewRepository(rt.db, logger)
	app, err := wire.Wiring(repos, rt.db, events, rt.config, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", rt.config.App.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sweepEvery > 0 {
		g.Go(func() error {
			sweepNoShows(gctx, app.Service.Appointment, sweepEvery, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// sweepNoShows marks overdue pending appointments until ctx is done. A
// failed sweep is logged and retried on the next tick.
func sweepNoShows(ctx context.Context, appointments usecase.AppointmentService, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := appointments.MarkNoShows(ctx, now); err != nil && ctx.Err() == nil {
				logger.Error("No-show sweep failed", zap.Error(err))
			}
		}
	}
}
