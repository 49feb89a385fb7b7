package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/internal/cli"
	"github.com/aretw0/rux/internal/presentation/tui"
	httpAdapter "github.com/aretw0/rux/pkg/adapters/http"
	"github.com/aretw0/rux/pkg/observability"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the store over HTTP: state reads and writes, reducer dispatch,
dump and load, Server-Sent Events and WebSocket streams per path, snapshots
and Prometheus metrics.

With --watch (requires --repo) the store is rebuilt whenever a slice document
changes; values of fields that survive the change are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		watch, _ := cmd.Flags().GetBool("watch")
		quiet, _ := cmd.Flags().GetBool("quiet")
		rps, _ := cmd.Flags().GetFloat64("rate-limit")
		burst, _ := cmd.Flags().GetInt("rate-burst")
		schedule, _ := cmd.Flags().GetString("snapshot-schedule")

		logger, err := cli.NewLogger(cfg)
		if err != nil {
			return err
		}
		metrics := observability.NewMetrics()
		hooks := rux.WithLifecycleHooks(metrics.Hooks())

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		var (
			engine   *rux.Engine
			reloader *cli.Reloader
		)
		if watch {
			reloader, err = cli.NewReloader(cfg, logger, hooks)
			if err != nil {
				return err
			}
			engine, err = reloader.Open(sigCtx)
		} else {
			engine, err = cli.NewEngine(sigCtx, cfg, logger, hooks)
		}
		if err != nil {
			return err
		}
		srv := httpAdapter.NewServer(engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(metrics.Handler()),
			httpAdapter.WithRateLimit(rps, burst),
			httpAdapter.WithBearerAuth([]byte(cfg.AuthSecret)),
		)

		if !quiet {
			tui.PrintBanner(cmd.ErrOrStderr(), rux.Version)
			tui.Info(cmd.ErrOrStderr(), "Serving %s on %s", cli.Describe(engine), addr)
		}

		if reloader != nil {
			reloader.Exclusive = exclusive(srv)
			reloader.OnReload = func(e *rux.Engine) {
				if !quiet {
					tui.Info(cmd.ErrOrStderr(), "Reloaded %s", cli.Describe(e))
				}
			}
			go func() {
				if err := reloader.Run(sigCtx, engine); err != nil {
					logger.Error("Watcher failed", "err", err)
				}
			}()
		}

		if schedule != "" {
			sched, err := cli.ScheduleSnapshots(schedule, func(ctx context.Context, id string) (string, error) {
				var saved string
				err := srv.Locked(func(e httpAdapter.Engine) error {
					var err error
					saved, err = e.Persist(ctx, id)
					return err
				})
				return saved, err
			}, logger)
			if err != nil {
				return err
			}
			defer sched.Stop()
		}

		return listenAndServe(sigCtx, &http.Server{Addr: addr, Handler: srv}, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("watch", false, "Rebuild the store when slice documents change")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
	serveCmd.Flags().Float64("rate-limit", 0, "Requests per second allowed per client (0 disables)")
	serveCmd.Flags().Int("rate-burst", 10, "Burst size for --rate-limit")
	serveCmd.Flags().StringVar(&cfg.AuthSecret, "auth-secret", "", "Require JWTs signed with this secret (see rux token)")
	serveCmd.Flags().String("snapshot-schedule", "", `Save snapshots on a cron schedule, e.g. "@every 10m"`)
}

// exclusive swaps reloaded engines into srv under its engine lock, so the
// carried-over state and the swap are atomic with request handling.
func exclusive(srv *httpAdapter.Server) func(func(*rux.Engine) (*rux.Engine, error)) error {
	return func(install func(*rux.Engine) (*rux.Engine, error)) error {
		return srv.Replace(func(current httpAdapter.Engine) (httpAdapter.Engine, error) {
			prev, ok := current.(*rux.Engine)
			if !ok {
				return nil, fmt.Errorf("cannot reload a %T", current)
			}
			next, err := install(prev)
			if err != nil {
				return nil, err
			}
			return next, nil
		})
	}
}

// listenAndServe runs srv until ctx is cancelled, then shuts it down gracefully.
func listenAndServe(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting rux server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		logger.Info("rux server stopped gracefully")
		return nil
	}
}
