package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <text>...",
		Short: "Set or edit the batch summary text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := apiClient.SetSummary(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Summary updated")
			return nil
		},
	}
}
