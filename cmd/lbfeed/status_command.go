package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lbfeed/internal/config"
	"lbfeed/internal/daemon"
	"lbfeed/internal/preflight"
)

const statusRequestTimeout = 3 * time.Second

type statusReport struct {
	DaemonReachable bool               `json:"daemon_reachable"`
	Daemon          *daemon.Status     `json:"daemon,omitempty"`
	Checks          []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := statusReport{Checks: preflight.RunAll(cmd.Context(), cfg)}
			if status, err := fetchDaemonStatus(cmd.Context(), cfg); err == nil {
				report.DaemonReachable = true
				report.Daemon = status
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, cfg, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

// fetchDaemonStatus asks a running daemon for its health document.
func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*daemon.Status, error) {
	reqCtx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+dialAddress(cfg.Server.Bind)+"/healthz", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}

// dialAddress turns a listen address into one a local client can dial.
func dialAddress(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func printStatus(cmd *cobra.Command, cfg *config.Config, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := isTerminal(out)

	lines := renderSectionHeader("Daemon", colorize)
	switch {
	case !report.DaemonReachable:
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running on "+cfg.Server.Bind, colorize))
	case !report.Daemon.Running:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Shutting down", colorize))
	default:
		status := report.Daemon
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Serving on "+cfg.Server.Bind, colorize))
		lines = append(lines, renderStatusLine("Queue depth", statusInfo, fmt.Sprintf("%d pending batches", status.QueueDepth), colorize))
		if status.StoreError != "" {
			lines = append(lines, renderStatusLine("Cached releases", statusError, status.StoreError, colorize))
		} else {
			lines = append(lines, renderStatusLine("Cached releases", statusInfo, fmt.Sprintf("%d in %s", status.Records, status.StoreBackend), colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
