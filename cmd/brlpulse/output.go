package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/brlpulse/internal/convert"
	"github.com/sawpanic/brlpulse/internal/market"
)

func addFormatFlag(fs *pflag.FlagSet) {
	fs.String("format", "auto", "Output format (auto|table|json)")
}

// resolveFormat maps "auto" to a table on a terminal and JSON when piped
func resolveFormat(format string, isTTY bool) (string, error) {
	switch format {
	case "table", "json":
		return format, nil
	case "auto", "":
		if isTTY {
			return "table", nil
		}
		return "json", nil
	}
	return "", fmt.Errorf("invalid --format %q (want auto, table or json)", format)
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderFetch(w io.Writer, r market.FetchResult) {
	fmt.Fprintf(w, "Fetch %s (%s)\n", r.ID, r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, strings.Repeat("─", 48))

	if s := r.Snapshot; s != nil {
		fmt.Fprintf(w, "%-12s US$ %14.2f   R$ %14.2f\n", "Bitcoin", s.BTC, s.BTCInBRL())
		fmt.Fprintf(w, "%-12s US$ %14.2f   R$ %14.2f\n", "Gold (oz)", s.Gold, s.GoldInBRL())
		fmt.Fprintf(w, "%-12s R$  %14.4f\n", "USD/BRL", s.USDToBRL)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error [%s]: %s\n", r.ErrorKind, r.Error)
		for _, f := range r.Fields {
			if f.Status != market.FieldOK {
				fmt.Fprintf(w, "  %-8s %s %q\n", f.Label, f.Status, f.Raw)
			}
		}
	}

	if len(r.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range r.Sources {
			fmt.Fprintf(w, "  %d. %s  %s\n", i+1, c.Title, c.URL)
		}
	}
}

func renderConversion(w io.Writer, amount string, res convert.Result) {
	fmt.Fprintf(w, "R$ %s =\n", amount)
	fmt.Fprintf(w, "  %s\n", res.FormatUSD())
	fmt.Fprintf(w, "  %s\n", res.FormatBTC())
	fmt.Fprintf(w, "  %s\n", res.FormatGold())
}
