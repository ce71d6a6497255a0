package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gloss/internal/api"
	"gloss/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var daemonOnly bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active batch and its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}

			if daemonOnly {
				return printDaemonStatus(cmd, apiClient)
			}

			for {
				b, err := apiClient.Batch(cmd.Context())
				if err != nil {
					return err
				}
				progress, err := apiClient.Progress(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if b == nil {
					fmt.Fprintln(out, "No active batch. Start one with `gloss submit`.")
					return nil
				}
				printBatch(cmd, b, progress)

				if !watch || (progress != nil && progress.Terminal) {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(2 * time.Second):
				}
				fmt.Fprintln(out)
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the batch reaches a terminal state")
	cmd.Flags().BoolVar(&daemonOnly, "daemon", false, "Show daemon health instead of batch progress")
	return cmd
}

func printDaemonStatus(cmd *cobra.Command, apiClient *client.Client) error {
	status, err := apiClient.Status(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon running (pid %d)\n", status.PID)
	fmt.Fprintf(out, "Session DB: %s\n", status.SessionDB)
	fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
	if status.ActiveBatch != "" {
		fmt.Fprintf(out, "Active batch: %s\n", status.ActiveBatch)
	} else {
		fmt.Fprintln(out, "No active batch")
	}
	return nil
}

func printBatch(cmd *cobra.Command, b *api.Batch, progress *api.Progress) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Batch %s\n", b.ID)
	fmt.Fprintf(out, "Instructions: %s\n", b.Instructions)
	if b.Summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", b.Summary)
	}

	rows := make([][]string, 0, len(b.Images))
	for _, img := range b.Images {
		detail := ""
		if img.ErrorMessage != "" {
			detail = fmt.Sprintf("[%s] %s", img.ErrorKind, truncate(img.ErrorMessage, 60))
		} else if len(img.History) > 0 {
			detail = fmt.Sprintf("%d retouch(es)", len(img.History))
		}
		rows = append(rows, []string{
			shortID(img.ID),
			img.Name,
			statusLabel(img.Status, colorize),
			fmt.Sprintf("%d", img.Attempts),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Status", "Attempts", "Detail"}, rows, 3))

	if progress != nil {
		fmt.Fprintf(out, "Progress: %d/%d done (%d completed, %d failed, %.0f%%)\n",
			progress.Completed+progress.Failed, progress.Total,
			progress.Completed, progress.Failed, progress.Percent)
		if progress.Terminal {
			fmt.Fprintln(out, "Batch is terminal; export with `gloss export archive` or `gloss export dam`.")
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit]) + "..."
}
