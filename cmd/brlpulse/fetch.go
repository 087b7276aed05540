package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	clilog "github.com/sawpanic/brlpulse/internal/log"
	"github.com/sawpanic/brlpulse/internal/market"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch current quotes once and print them",
		Long: `Runs one grounded fetch and prints the snapshot and its sources.

Examples:
  brlpulse fetch
  brlpulse fetch --format json`,
		RunE: runFetch,
	}
	addFormatFlag(cmd.Flags())
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format, err := resolveFormat(format, stdoutIsTerminal())
	if err != nil {
		return err
	}

	result, err := fetchOnce(format == "table")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		renderFetch(out, result)
	}

	if !result.OK() {
		return fmt.Errorf("fetch failed: %s", result.ErrorKind)
	}
	return nil
}

// fetchOnce runs a single fetch that SIGINT can abort, with a spinner on interactive stderr
func fetchOnce(progress bool) (market.FetchResult, error) {
	a, err := newApp(cfg)
	if err != nil {
		return market.FetchResult{}, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !progress || !term.IsTerminal(int(os.Stderr.Fd())) {
		return a.client.Fetch(ctx), nil
	}

	spinner := clilog.NewSpinner(os.Stderr, clilog.SpinnerDots, "Asking "+cfg.Provider.Model+" for live quotes")
	spinner.Start()
	result := a.client.Fetch(ctx)
	spinner.Stop("")
	return result, nil
}
