package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gloss/internal/batch"
	"gloss/internal/daemon"
	"gloss/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var foregroundLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gloss daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logFile, err := logging.OpenLogFile(cfg.Paths.LogDir, "gloss.log")
			if err != nil {
				return err
			}
			defer logFile.Close()

			var output io.Writer = logFile
			if foregroundLog {
				output = io.MultiWriter(logFile, cmd.ErrOrStderr())
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: output,
			})
			if err != nil {
				return err
			}

			store, err := batch.Open(cfg)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}

			d, err := daemon.New(cfg, store, logger)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gloss daemon listening on %s (pid %d)\n", d.APIAddr(), os.Getpid())

			<-runCtx.Done()
			logger.Info("gloss shutting down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&foregroundLog, "log-stderr", false, "Mirror logs to stderr in addition to the log file")
	return cmd
}
