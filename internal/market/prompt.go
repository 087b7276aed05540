package market

import "strings"

// Sentinel markers and field labels shared by the prompt and the parser.
// Changing any of them requires changing both.
const (
	BlockStart = "DATA_START"
	BlockEnd   = "DATA_END"

	LabelBTC    = "BTC"
	LabelGold   = "GOLD"
	LabelUSDBRL = "USD_BRL"
)

// Labels lists the block fields in the order they are requested and reported
var Labels = []string{LabelBTC, LabelGold, LabelUSDBRL}

var promptLines = []string{
	"Act as a high-precision financial terminal. Use Google Search to find the prices RIGHT NOW",
	"(real-time / live price) for the assets below. Ignore old articles and previous-day forecasts.",
	"",
	"Look up specifically:",
	"1. Current Bitcoin (BTC) price in US Dollars (USD).",
	"2. Current Gold spot price (XAU) per troy ounce in US Dollars (USD).",
	"3. Current commercial exchange rate from US Dollar (USD) to Brazilian Real (BRL).",
	"",
	"IMPORTANT: Return ONLY the raw numeric data in the format below so it can be processed.",
	"Do not use markdown formatting inside the data block.",
	"",
	BlockStart,
	LabelBTC + ": [numeric BTC value in USD, e.g. 64230.50]",
	LabelGold + ": [numeric value of one ounce of gold in USD, e.g. 2340.10]",
	LabelUSDBRL + ": [numeric value of 1 USD in BRL, e.g. 5.25]",
	BlockEnd,
}

// BuildPrompt returns the fixed instruction sent to the model on every fetch
func BuildPrompt() string {
	return strings.Join(promptLines, "\n")
}
