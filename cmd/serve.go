package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citewatch/internal/api"
	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/runlog"
)

var (
	servePort     int
	serveSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long:  "Serves the dashboard REST API and, when --schedule is set, runs recurring evaluations on a cron schedule.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// The serve mode works without provider keys; evaluate and cite
		// requests fail with a clear error when none are configured.
		reg, err := provider.FromConfig(cfg)
		if err != nil {
			zap.L().Warn("no providers configured, evaluation endpoints disabled", zap.Error(err))
			reg = provider.NewRegistry()
		}

		clusters, err := loadClusters()
		if err != nil {
			return err
		}

		writer := runlog.NewWriter(cfg.Logs.Dir)
		srv := api.NewServer(st, writer, clusters, reg, runnerOptions())

		prompts, targets, err := loadInputs("", "")
		if err != nil {
			zap.L().Warn("default prompt/target lists unavailable", zap.Error(err))
		} else {
			srv.SetDefaults(prompts, targets)
		}

		if serveSchedule != "" {
			if len(reg.All()) == 0 {
				return eris.New("--schedule requires at least one configured provider key")
			}
			c := cron.New()
			_, err := c.AddFunc(serveSchedule, func() {
				if err := srv.RunEvaluation(context.Background()); err != nil {
					zap.L().Error("scheduled evaluation", zap.Error(err))
				}
			})
			if err != nil {
				return eris.Wrap(err, "invalid cron expression")
			}
			c.Start()
			defer func() { <-c.Stop().Done() }()
			zap.L().Info("scheduler started", zap.String("schedule", serveSchedule))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron expression for recurring evaluations")
	rootCmd.AddCommand(serveCmd)
}
