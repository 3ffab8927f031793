package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"meshview/internal/config"
	"meshview/internal/instance"
	"meshview/internal/statestore"
	"meshview/internal/viewerrun"
)

type statusReport struct {
	ConfigPath string `json:"config_path"`
	Address    string `json:"address"`
	LockHeld   bool   `json:"lock_held"`
	Reachable  bool   `json:"reachable"`
	PID        int    `json:"pid,omitempty"`
	StateStore string `json:"state_store,omitempty"`
	LastView   string `json:"last_view,omitempty"`
	Metrics    string `json:"metrics,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a viewer is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			report := collectStatus(cmd.Context(), cfg)
			report.ConfigPath = ctx.configPath
			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, report.ConfigPath, colorize))
			if report.Reachable {
				msg := "accepting connections at " + report.Address
				if report.PID > 0 {
					msg += " (pid " + strconv.Itoa(report.PID) + ")"
				}
				fmt.Fprintln(out, renderStatusLine("Viewer", statusOK, msg, colorize))
			} else if report.LockHeld {
				fmt.Fprintln(out, renderStatusLine("Viewer", statusWarn, "starting up or not accepting at "+report.Address, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Viewer", statusInfo, "not running; producer commands will start one", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Instance lock", statusInfo, "held: "+yesNo(report.LockHeld), colorize))
			if report.StateStore != "" {
				last := report.LastView
				if last == "" {
					last = "none saved"
				}
				fmt.Fprintln(out, renderStatusLine("Last view", statusInfo, last, colorize))
			}
			if report.Metrics != "" {
				fmt.Fprintln(out, renderStatusLine("Metrics", statusInfo, "http://"+report.Metrics+"/metrics", colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) statusReport {
	endpoint := instance.Endpoint{Address: cfg.Viewer.Address, LockPath: cfg.Viewer.LockPath}
	report := statusReport{
		Address:  cfg.Viewer.Address,
		LockHeld: endpoint.Held(),
		Metrics:  cfg.Metrics.Bind,
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	var d net.Dialer
	if conn, err := d.DialContext(dialCtx, "tcp", cfg.Viewer.Address); err == nil {
		report.Reachable = true
		_ = conn.Close()
	}
	cancel()
	if report.LockHeld || report.Reachable {
		report.PID = viewerrun.ReadPID(cfg)
	}

	if cfg.State.Enabled {
		report.StateStore = cfg.StateDBPath()
		if store, err := statestore.Open(ctx, cfg.StateDBPath()); err == nil {
			if rec, ok, err := store.LastView(ctx); err == nil && ok {
				report.LastView = fmt.Sprintf("%s -> %s", formatVec3(rec.View.Position), formatVec3(rec.View.LookAt))
			}
			_ = store.Close()
		}
	}
	return report
}
