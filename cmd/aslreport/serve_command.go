package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"aslreport/internal/logging"
	"aslreport/internal/server"
)

const serveLockName = "aslreport-serve.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP validation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lockPath := filepath.Join(cfg.Paths.DataDir, serveLockName)
			lock := flock.New(lockPath)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another aslreport server is already running")
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release server lock", logging.Error(err))
				}
			}()

			svc, closeFn, err := ctx.validationService(logger, true)
			if err != nil {
				return err
			}
			defer closeFn()

			logFile := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "*.log", logFile)
			if _, err := svc.Prune(cmd.Context(), cfg.Logging.RetentionDays); err != nil {
				logging.WarnWithContext(logger, "run retention failed", "runs_prune_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run `aslreport runs prune` manually"),
				)
			}

			srv, err := server.New(cfg, svc, logger)
			if err != nil {
				return err
			}
			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}
			defer srv.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())
			<-cmd.Context().Done()
			logger.Info("aslreport server shutting down", logging.String("lock", lockPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	return cmd
}
