package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gloss/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var instructions string

	cmd := &cobra.Command{
		Use:   "submit <image>...",
		Short: "Upload a new batch of images for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(instructions) == "" {
				return fmt.Errorf("--instructions is required")
			}

			req := api.SubmitRequest{Instructions: instructions}
			for _, arg := range args {
				data, err := os.ReadFile(arg)
				if err != nil {
					return fmt.Errorf("read %s: %w", arg, err)
				}
				req.Images = append(req.Images, api.ImageInput{
					Name: filepath.Base(arg),
					Data: data,
				})
			}

			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			batchID, err := apiClient.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Submitted batch %s with %d image(s)\n", batchID, len(req.Images))
			fmt.Fprintln(cmd.OutOrStdout(), "Track progress with `gloss status`")
			return nil
		},
	}

	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "Processing instructions applied to every image")
	return cmd
}
