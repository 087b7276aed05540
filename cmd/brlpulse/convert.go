package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/brlpulse/internal/convert"
	"github.com/sawpanic/brlpulse/internal/market"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a BRL amount at live rates",
		Long: `Fetches current quotes and converts a BRL amount to dollars, bitcoin and troy ounces of gold.

Examples:
  brlpulse convert --amount 2500
  brlpulse convert --amount "1500,75" --format json`,
		RunE: runConvert,
	}
	cmd.Flags().String("amount", "", "BRL amount (defaults to dashboard.default_amount)")
	addFormatFlag(cmd.Flags())
	return cmd
}

type conversionOutput struct {
	Amount string           `json:"amount"`
	Result convert.Result   `json:"result"`
	Rates  *market.Snapshot `json:"rates"`
}

func runConvert(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format, err := resolveFormat(format, stdoutIsTerminal())
	if err != nil {
		return err
	}

	amount, _ := cmd.Flags().GetString("amount")
	if amount == "" {
		amount = cfg.Dashboard.DefaultAmount
	}
	if _, ok := convert.ParseAmount(amount); !ok {
		return fmt.Errorf("invalid amount %q", amount)
	}

	result, err := fetchOnce(format == "table")
	if err != nil {
		return err
	}
	if !result.OK() {
		renderFetch(cmd.ErrOrStderr(), result)
		return fmt.Errorf("fetch failed: %s", result.ErrorKind)
	}

	res := convert.Convert(amount, *result.Snapshot)
	if !res.Finite() {
		return errors.New("the fetched snapshot has a zero rate; conversion is undefined")
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, conversionOutput{Amount: amount, Result: res, Rates: result.Snapshot})
	}
	renderConversion(out, amount, res)
	return nil
}
