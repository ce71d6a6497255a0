package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gloss/internal/api"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the completed batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newExportArchiveCommand(ctx))
	cmd.AddCommand(newExportDamCommand(ctx))
	return cmd
}

func newExportArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Package completed images into a local zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			path, err := apiClient.ExportArchive(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archive written to %s\n", path)
			return nil
		},
	}
}

func newExportDamCommand(ctx *commandContext) *cobra.Command {
	var conn api.DamConnection

	cmd := &cobra.Command{
		Use:   "dam",
		Short: "Deliver completed images to the configured DAM",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			report, err := apiClient.ExportDam(cmd.Context(), conn)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&conn.Provider, "provider", "", "DAM provider (default from config)")
	cmd.Flags().StringVar(&conn.TargetFolder, "folder", "", "Target folder on the DAM")
	cmd.Flags().StringVar(&conn.SubfolderPattern, "pattern", "", "Subfolder pattern: date, batch, or literal")
	cmd.Flags().StringVar(&conn.Visibility, "visibility", "", "Asset visibility: private or public")
	cmd.Flags().StringVar(&conn.CredentialsRef, "credentials", "", "Credentials reference passed to the provider")
	cmd.Flags().BoolVar(&conn.AttachMetadata, "metadata", false, "Attach batch metadata to each asset")
	return cmd
}

func printReport(cmd *cobra.Command, report *api.ExportReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Delivered %d, failed %d\n", report.Delivered, report.Failed)

	rows := make([][]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		detail := entry.RemoteRef
		if entry.Outcome == "failure" {
			detail = fmt.Sprintf("[%s] %s", entry.ErrorKind, truncate(entry.ErrorMessage, 60))
		}
		rows = append(rows, []string{
			shortID(entry.ImageID),
			entry.Name,
			entry.Outcome,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Outcome", "Detail"}, rows))
}
