package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_ImpliedBRLPrices(t *testing.T) {
	s := Snapshot{BTC: 50000, Gold: 2000, USDToBRL: 5}

	assert.Equal(t, 250000.0, s.BTCInBRL())
	assert.Equal(t, 10000.0, s.GoldInBRL())
}

func TestFetchResult_Outcome(t *testing.T) {
	ok := FetchResult{Snapshot: &Snapshot{BTC: 1, Gold: 1, USDToBRL: 1}}
	assert.True(t, ok.OK())
	assert.Equal(t, "success", ok.Outcome())

	failed := FetchResult{Error: "no key", ErrorKind: KindConfigurationMissing}
	assert.False(t, failed.OK())
	assert.Equal(t, "configuration_missing", failed.Outcome())
}
