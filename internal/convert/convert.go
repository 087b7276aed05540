// Package convert computes what a BRL amount is worth in dollars, bitcoin and gold.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sawpanic/brlpulse/internal/market"
	"github.com/sawpanic/brlpulse/internal/market/numeral"
)

// DefaultAmount is the BRL amount shown in the converter before the user types anything
const DefaultAmount = "1000"

// Result holds the equivalents of a BRL amount
type Result struct {
	USD        float64 `json:"usd"`
	BTC        float64 `json:"btc"`
	GoldOunces float64 `json:"gold_ounces"`
}

// Convert divides a BRL amount through the snapshot's rates.
// An amount that is not a number converts to all zeros. A zero rate yields
// Inf or NaN; check Finite before presenting the result.
func Convert(amount string, s market.Snapshot) Result {
	brl, ok := ParseAmount(amount)
	if !ok {
		return Result{}
	}

	usd := brl / s.USDToBRL
	return Result{
		USD:        usd,
		BTC:        usd / s.BTC,
		GoldOunces: usd / s.Gold,
	}
}

// AmountRules read BRL the way a Brazilian user types it: the comma is always
// the decimal point, so "1.000,50" is one thousand and a half. A comma ahead
// of a dot ("1,000.50") is ambiguous under these rules and rejected.
var AmountRules = numeral.Rules{
	CommaOnly: numeral.CommaDecimal,
	Mixed:     numeral.CommaDecimal,
}

// ParseAmount reads a user-typed amount. Go float syntax is tried first
// (what a numeric input submits), then AmountRules.
func ParseAmount(amount string) (float64, bool) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	if v, err := numeral.Parse(s, AmountRules); err == nil {
		return v, true
	}
	return 0, false
}

// Finite reports whether every field is a real number
func (r Result) Finite() bool {
	for _, v := range []float64{r.USD, r.BTC, r.GoldOunces} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FormatUSD renders the dollar amount with two decimals
func (r Result) FormatUSD() string {
	return "US$ " + strconv.FormatFloat(r.USD, 'f', 2, 64)
}

// FormatBTC renders the bitcoin fraction with satoshi precision
func (r Result) FormatBTC() string {
	return fmt.Sprintf("%.8f BTC", r.BTC)
}

// FormatGold renders troy ounces with four decimals
func (r Result) FormatGold() string {
	return fmt.Sprintf("%.4f oz", r.GoldOunces)
}
