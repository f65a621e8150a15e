package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/htmlnorm/internal/logfields"
	"git.home.luguber.info/inful/htmlnorm/internal/metrics"
	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
	"git.home.luguber.info/inful/htmlnorm/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Initial bool `help:"Run over the whole tree once before watching" default:"true" negatable:""`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.close()

	proc, err := s.processor(stageSet{
		structure: s.cfg.Structure.Enabled,
		ssi:       s.cfg.SSI.Enabled,
		rewrite:   true,
	})
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(s.cfg.Root, proc, s.options("watch")...)

	if s.registry != nil && s.cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              s.cfg.Metrics.Listen,
			Handler:           metricsMux(s),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if w.Initial {
		if _, err := runner.Run(ctx); err != nil {
			return err
		}
	}

	watcher, err := watch.New(s.cfg.Root, runner, s.cfg.Watch.DebounceDuration(), s.cfg.Watch.SweepDuration())
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

func metricsMux(s *session) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	return mux
}
