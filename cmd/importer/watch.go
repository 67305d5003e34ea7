package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-importer/pkg/cron"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		userID, accountID string
		dir, schedule     string
		once              bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import statements dropped into the inbox directory on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inbox := a.cfg.Inbox
			if userID == "" {
				userID = inbox.UserID
			}
			if accountID == "" {
				accountID = inbox.AccountID
			}
			if dir != "" {
				inbox.Dir = dir
			}
			if schedule != "" {
				inbox.Schedule = schedule
			}

			user, err := parseOptionalUUID(userID)
			if err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}
			account, err := uuid.Parse(accountID)
			if err != nil {
				return fmt.Errorf("invalid account (set --account or INBOX_ACCOUNT_ID): %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := InitDependencies(ctx, a.cfg, a.logger, dependencyOptions{})
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			importer := newFileImporter(deps.ImportService, importDefaults{
				UserID:           user,
				AccountID:        account,
				Currency:         a.cfg.Import.DefaultCurrency,
				AutoCategorize:   true,
				DetectDuplicates: true,
				SkipDuplicates:   true,
				Location:         time.UTC,
			}, a.logger)

			sched := cron.NewScheduler(cron.Config{
				Dir:            inbox.Dir,
				Schedule:       inbox.Schedule,
				FilesPerSecond: inbox.FilesPerSecond,
			}, importer, a.logger)

			if once {
				res, err := sched.Sweep(ctx)
				if res != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "processed %d, failed %d\n", len(res.Processed), len(res.Failed))
				}
				return err
			}

			if a.cfg.Observability.MetricsEnabled {
				srv := &http.Server{
					Addr:              ":" + strconv.Itoa(a.cfg.Observability.MetricsPort),
					Handler:           metricsMux(deps),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					a.logger.Info("metrics server listening", "addr", srv.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if err := sched.Start(); err != nil {
				return err
			}
			a.logger.Info("watching inbox", "dir", inbox.Dir, "schedule", inbox.Schedule)

			<-ctx.Done()
			a.logger.Info("shutting down, waiting for running sweep")
			<-sched.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner of the rules applied (default INBOX_USER_ID)")
	cmd.Flags().StringVar(&accountID, "account", "", "account the transactions belong to (default INBOX_ACCOUNT_ID)")
	cmd.Flags().StringVar(&dir, "dir", "", "inbox directory (default INBOX_DIR)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default INBOX_SCHEDULE)")
	cmd.Flags().BoolVar(&once, "once", false, "sweep the inbox once and exit")

	return cmd
}

func metricsMux(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
