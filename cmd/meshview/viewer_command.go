package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshview/internal/viewerrun"
)

func newViewerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "viewer",
		Short:  "Run the viewer in the foreground",
		Long:   "Run the viewer in the foreground. Producer commands start it automatically when nothing is listening.",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return viewerrun.Run(cmd.Context(), cfg, viewerrun.Options{})
		},
	}
}
