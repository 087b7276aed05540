package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/brlpulse/internal/market/numeral"
)

var parsedAt = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func TestParser_WellFormedBlock(t *testing.T) {
	text := "DATA_START\nBTC: 64230.50\nGOLD: 2340.10\nUSD_BRL: 5.25\nDATA_END"

	snap, fields, err := NewParser(numeral.DefaultRules).Parse(text, parsedAt)
	require.NoError(t, err)

	assert.InDelta(t, 64230.50, snap.BTC, 1e-9)
	assert.InDelta(t, 2340.10, snap.Gold, 1e-9)
	assert.InDelta(t, 5.25, snap.USDToBRL, 1e-9)
	assert.Equal(t, parsedAt, snap.CapturedAt)

	require.Len(t, fields, 3)
	for _, f := range fields {
		assert.Equal(t, FieldOK, f.Status, f.Label)
	}
}

func TestParser_TolerantLayouts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Snapshot
	}{
		{
			name: "surrounded_by_prose",
			text: "Here are the live figures.\n\nDATA_START\nBTC: 64,230.50\nGOLD: 2,340.10\nUSD_BRL: 5,25\nDATA_END\n\nSources below.",
			want: Snapshot{BTC: 64230.50, Gold: 2340.10, USDToBRL: 5.25},
		},
		{
			name: "fields_out_of_order",
			text: "DATA_START\nUSD_BRL: 5.31\nGOLD: 2650\nBTC: 98000\nDATA_END",
			want: Snapshot{BTC: 98000, Gold: 2650, USDToBRL: 5.31},
		},
		{
			name: "extra_whitespace",
			text: "DATA_START\n\n   BTC :   64230.5  \n\n\tGOLD:2340.1\r\n USD_BRL:\t5.25\n\nDATA_END",
			want: Snapshot{BTC: 64230.5, Gold: 2340.1, USDToBRL: 5.25},
		},
		{
			name: "inline_block",
			text: "DATA_START BTC: 64230.50 GOLD: 2340.10 USD_BRL: 5.25 DATA_END",
			want: Snapshot{BTC: 64230.50, Gold: 2340.10, USDToBRL: 5.25},
		},
		{
			name: "currency_symbols_and_units",
			text: "DATA_START\nBTC: $64,230.50 USD\nGOLD: US$ 2340.10\nUSD_BRL: R$ 5,25\nDATA_END",
			want: Snapshot{BTC: 64230.50, Gold: 2340.10, USDToBRL: 5.25},
		},
		{
			name: "markdown_emphasis",
			text: "DATA_START\n**BTC:** 64230.50\n**GOLD:** 2340.10\n**USD_BRL:** 5.25\nDATA_END",
			want: Snapshot{BTC: 64230.50, Gold: 2340.10, USDToBRL: 5.25},
		},
		{
			name: "first_block_wins",
			text: "DATA_START\nBTC: 1\nGOLD: 2\nUSD_BRL: 3\nDATA_END\nDATA_START\nBTC: 4\nGOLD: 5\nUSD_BRL: 6\nDATA_END",
			want: Snapshot{BTC: 1, Gold: 2, USDToBRL: 3},
		},
	}

	p := NewParser(numeral.DefaultRules)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, _, err := p.Parse(tt.text, parsedAt)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.BTC, snap.BTC, 1e-9)
			assert.InDelta(t, tt.want.Gold, snap.Gold, 1e-9)
			assert.InDelta(t, tt.want.USDToBRL, snap.USDToBRL, 1e-9)
		})
	}
}

func TestParser_BlockNotFound(t *testing.T) {
	p := NewParser(numeral.DefaultRules)

	for _, text := range []string{
		"",
		"Bitcoin is trading at 64,230.50 USD today.",
		"DATA_START\nBTC: 1\nGOLD: 2\nUSD_BRL: 3",
		"BTC: 1\nDATA_END",
	} {
		_, fields, err := p.Parse(text, parsedAt)
		assert.ErrorIs(t, err, ErrBlockNotFound, text)
		assert.Nil(t, fields)
	}
}

func TestParser_MissingVersusGarbled(t *testing.T) {
	p := NewParser(numeral.DefaultRules)

	t.Run("empty_block", func(t *testing.T) {
		_, fields, err := p.Parse("DATA_START\n\nDATA_END", parsedAt)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFieldMissing)

		var ferr *FieldError
		require.ErrorAs(t, err, &ferr)
		assert.Len(t, ferr.Problems, 3)
		assert.Equal(t, KindFieldMissing, ferr.Kind())
		for _, f := range fields {
			assert.Equal(t, FieldMissing, f.Status)
		}
	})

	t.Run("one_label_absent", func(t *testing.T) {
		_, fields, err := p.Parse("DATA_START\nBTC: 64230.50\nUSD_BRL: 5.25\nDATA_END", parsedAt)
		assert.ErrorIs(t, err, ErrFieldMissing)
		assert.NotErrorIs(t, err, ErrFieldGarbled)
		assert.Equal(t, FieldOK, fields[0].Status)
		assert.Equal(t, FieldMissing, fields[1].Status)
		assert.Equal(t, FieldOK, fields[2].Status)
	})

	t.Run("value_not_numeric", func(t *testing.T) {
		_, fields, err := p.Parse("DATA_START\nBTC: 64230.50\nGOLD: N/A\nUSD_BRL: 5.25\nDATA_END", parsedAt)
		assert.ErrorIs(t, err, ErrFieldGarbled)
		assert.NotErrorIs(t, err, ErrFieldMissing)
		assert.Equal(t, FieldGarbled, fields[1].Status)
		assert.Equal(t, "N/A", fields[1].Raw)
		assert.Contains(t, err.Error(), `GOLD garbled ("N/A")`)
	})

	t.Run("value_ambiguous", func(t *testing.T) {
		_, fields, err := p.Parse("DATA_START\nBTC: 64,23,0\nGOLD: 2340.10\nUSD_BRL: 5.25\nDATA_END", parsedAt)
		assert.ErrorIs(t, err, ErrFieldGarbled)
		assert.Equal(t, "64,23,0", fields[0].Raw)
	})

	t.Run("label_without_value", func(t *testing.T) {
		_, fields, err := p.Parse("DATA_START\nBTC: 64230.50\nGOLD: 2340.10\nUSD_BRL:\nDATA_END", parsedAt)
		assert.ErrorIs(t, err, ErrFieldGarbled)
		assert.Equal(t, FieldGarbled, fields[2].Status)
	})

	t.Run("missing_wins_over_garbled", func(t *testing.T) {
		_, _, err := p.Parse("DATA_START\nBTC: soon\nGOLD: 2340.10\nDATA_END", parsedAt)
		var ferr *FieldError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, KindFieldMissing, ferr.Kind())
		assert.Len(t, ferr.Problems, 2)
	})

	t.Run("legitimate_zero_is_ok", func(t *testing.T) {
		snap, _, err := p.Parse("DATA_START\nBTC: 0\nGOLD: 2340.10\nUSD_BRL: 5.25\nDATA_END", parsedAt)
		require.NoError(t, err)
		assert.Zero(t, snap.BTC)
	})
}

func TestParser_LabelBoundaries(t *testing.T) {
	p := NewParser(numeral.DefaultRules)

	// WBTC and GOLD_SPOT must not satisfy BTC and GOLD
	_, fields, err := p.Parse("DATA_START\nWBTC: 1\nGOLD_SPOT: 2\nUSD_BRL: 5.25\nDATA_END", parsedAt)
	require.Error(t, err)
	assert.Equal(t, FieldMissing, fields[0].Status)
	assert.Equal(t, FieldMissing, fields[1].Status)
}

func TestBuildSnapshot_RequiresEveryLabel(t *testing.T) {
	_, err := BuildSnapshot([]FieldReport{{Label: LabelBTC, Value: 1, Status: FieldOK}}, parsedAt)

	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Len(t, ferr.Problems, 2)
	assert.Equal(t, KindFieldMissing, ferr.Kind())
}

func TestExtractBlock(t *testing.T) {
	block, err := ExtractBlock("noise DATA_START\nBTC: 1\nDATA_END noise")
	require.NoError(t, err)
	assert.Equal(t, "\nBTC: 1\n", block)

	block, err = ExtractBlock("DATA_STARTDATA_END")
	require.NoError(t, err)
	assert.Empty(t, block)
}
