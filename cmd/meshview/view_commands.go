package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"meshview/internal/statestore"
	"meshview/internal/viewerctl"
	"meshview/internal/wire"
)

func newViewCommand(ctx *commandContext) *cobra.Command {
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Inspect or move the viewer camera",
	}
	viewCmd.AddCommand(newViewSetCommand(ctx))
	viewCmd.AddCommand(newViewGetCommand(ctx))
	viewCmd.AddCommand(newViewHistoryCommand(ctx))
	return viewCmd
}

func newViewSetCommand(ctx *commandContext) *cobra.Command {
	var position, lookAt vec3Flag

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Move the camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := wire.View{Position: position.value, LookAt: lookAt.value}
			return ctx.withClient(func(client *viewerctl.Client) error {
				if err := client.SetView(cmd.Context(), view); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Camera at %s looking at %s\n", formatVec3(view.Position), formatVec3(view.LookAt))
				return nil
			})
		},
	}
	cmd.Flags().Var(&position, "position", "Eye position")
	cmd.Flags().Var(&lookAt, "look-at", "Point the camera looks at")
	_ = cmd.MarkFlagRequired("position")
	_ = cmd.MarkFlagRequired("look-at")
	return cmd
}

type viewJSON struct {
	Position [3]float32 `json:"position"`
	LookAt   [3]float32 `json:"look_at"`
}

type viewRecordJSON struct {
	viewJSON
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
}

func newViewGetCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *viewerctl.Client) error {
				view, err := client.View(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, viewJSON{Position: view.Position, LookAt: view.LookAt})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "X", "Y", "Z"},
					[][]string{vecRow("position", view.Position), vecRow("look_at", view.LookAt)},
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newViewHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List camera views saved by past viewer runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.State.Enabled {
				return errors.New("view history is disabled (state.enabled = false)")
			}
			records, err := loadHistory(cmd.Context(), cfg.StateDBPath(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				out := make([]viewRecordJSON, 0, len(records))
				for _, rec := range records {
					out = append(out, viewRecordJSON{
						viewJSON:  viewJSON{Position: rec.View.Position, LookAt: rec.View.LookAt},
						SessionID: rec.SessionID,
						SavedAt:   rec.SavedAt,
					})
				}
				return writeJSON(cmd, out)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved views")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					rec.SavedAt.Local().Format("2006-01-02 15:04:05"),
					formatVec3(rec.View.Position),
					formatVec3(rec.View.LookAt),
					shortID(rec.SessionID),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Saved", "Position", "Look At", "Session"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of views (0 for all)")
	return cmd
}

func loadHistory(ctx context.Context, path string, limit int) ([]statestore.Record, error) {
	store, err := statestore.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	return store.History(ctx, limit)
}

func vecRow(label string, v wire.Vec3) []string {
	row := []string{label}
	for _, c := range v {
		row = append(row, strconv.FormatFloat(float64(c), 'f', 4, 32))
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
