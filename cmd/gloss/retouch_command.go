package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRetouchCommand(ctx *commandContext) *cobra.Command {
	var instruction string

	cmd := &cobra.Command{
		Use:   "retouch <image-id>",
		Short: "Apply one retouch instruction to a completed image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(instruction) == "" {
				return fmt.Errorf("--instruction is required")
			}

			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			img, err := apiClient.Retouch(cmd.Context(), args[0], instruction)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Retouched %s (%s)\n", img.Name, shortID(img.ID))
			fmt.Fprintf(out, "New ref: %s\n", img.ProcessedRef)
			fmt.Fprintf(out, "Retouches applied: %d\n", len(img.History))
			return nil
		},
	}

	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "Retouch instruction to apply")
	return cmd
}
