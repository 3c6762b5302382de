package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/config"
	"github.com/sawpanic/fundboard/internal/dashboard"
	"github.com/sawpanic/fundboard/internal/render"
)

var snapshotFormats = []string{"text", "json", "html"}

// errPanelsFailed is returned by --strict when any panel ends in error
var errPanelsFailed = errors.New("one or more panels failed")

type snapshotOptions struct {
	selection analytics.Selection
	format    string
	wait      time.Duration
	strict    bool
	noColor   bool
	panels    []string
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch every panel once and print it",
		Long:  "Mounts the dashboard for one selection, waits for the panels to settle and prints them as text, JSON or HTML",
		RunE:  runSnapshot,
	}
	cmd.Flags().String("symbol", "", "Symbol for the P&L panel (default from config)")
	cmd.Flags().String("strategy", "", "Strategy for the P&L panel (default from config)")
	cmd.Flags().String("format", "text", "Output format (text|json|html)")
	cmd.Flags().Duration("wait", 0, "Maximum time to wait for panels (default API timeout plus one second)")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any panel fails")
	cmd.Flags().Bool("no-color", false, "Disable coloured text output")
	cmd.Flags().StringSlice("panels", nil, "Panels to show (pnl,sweep,seasonal,spread)")
	return cmd
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd.Context())
	fs := cmd.Flags()

	opts := snapshotOptions{selection: cfg.DefaultSelection()}
	if v, _ := fs.GetString("symbol"); strings.TrimSpace(v) != "" {
		opts.selection.Symbol = strings.TrimSpace(v)
	}
	if v, _ := fs.GetString("strategy"); strings.TrimSpace(v) != "" {
		opts.selection.Strategy = strings.TrimSpace(v)
	}
	opts.format, _ = fs.GetString("format")
	opts.wait, _ = fs.GetDuration("wait")
	if opts.wait <= 0 {
		opts.wait = cfg.RequestTimeout() + time.Second
	}
	opts.strict, _ = fs.GetBool("strict")
	opts.noColor, _ = fs.GetBool("no-color")
	opts.panels, _ = fs.GetStringSlice("panels")

	client, err := newClient(cfg, nil)
	if err != nil {
		return err
	}
	return snapshot(cmd.Context(), client, cfg, opts, cmd.OutOrStdout())
}

// snapshot mounts one shell, waits for it to settle and writes every view
func snapshot(ctx context.Context, src analytics.Source, cfg *config.Config, opts snapshotOptions, out io.Writer) error {
	if opts.format == "" {
		opts.format = "text"
	}
	if _, ok := indexOf(snapshotFormats, opts.format); !ok {
		return fmt.Errorf("unknown format %q, want text, json or html", opts.format)
	}
	for _, p := range opts.panels {
		if _, ok := indexOf(render.Panels, p); !ok {
			return fmt.Errorf("unknown panel %q, want one of %s", p, strings.Join(render.Panels, ","))
		}
	}

	shellOpts := []dashboard.Option{dashboard.WithKind("snapshot")}
	if len(opts.panels) > 0 {
		shellOpts = append(shellOpts, dashboard.WithPanels(opts.panels...))
	}
	shell := dashboard.New(ctx, src, opts.selection, shellOpts...)
	defer shell.Close()

	waitCtx, cancel := context.WithTimeout(ctx, opts.wait)
	defer cancel()
	if err := shell.Settle(waitCtx); err != nil {
		log.Warn().Err(err).Dur("wait", opts.wait).Msg("Printing with panels still loading")
	}

	views := shell.Views()
	if err := writeViews(out, views, cfg, opts); err != nil {
		return err
	}

	if opts.strict {
		for _, v := range views {
			if v.Kind == render.KindError {
				return errPanelsFailed
			}
		}
	}
	return nil
}

func writeViews(out io.Writer, views []render.View, cfg *config.Config, opts snapshotOptions) error {
	switch opts.format {
	case "text":
		return render.NewTextEmitter(out, opts.noColor).EmitAll(views)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "html":
		panels, err := render.PagePanels(views)
		if err != nil {
			return err
		}
		return render.WritePageHTML(out, render.PageData{
			Selection:  opts.selection,
			Strategies: cfg.Strategies,
			Panels:     panels,
		})
	default:
		return fmt.Errorf("unknown format %q, want text, json or html", opts.format)
	}
}

func indexOf(list []string, s string) (int, bool) {
	for i, v := range list {
		if v == s {
			return i, true
		}
	}
	return -1, false
}
