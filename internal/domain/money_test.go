package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(10_500_000, CurrencyCoin) // 10.50 GB
	d := m.ToDecimal()
	assert.Equal(t, "10.5", d.String())
}

func TestFromDecimal(t *testing.T) {
	d := decimal.NewFromFloat(10.50)
	micros := FromDecimal(d)
	assert.Equal(t, int64(10_500_000), micros)
}

func TestMoney_Convert_CoinsToChips(t *testing.T) {
	// 100 GB at 0.1 chips per coin -> 10 CHIP
	source := NewMoney(100_000_000, CurrencyCoin)
	rate := decimal.RequireFromString("0.1")

	target := source.Convert(CurrencyChip, rate)

	assert.Equal(t, CurrencyChip, target.Currency)
	assert.Equal(t, int64(10_000_000), target.Amount)
}

func TestMoney_Convert_ChipsToCoins(t *testing.T) {
	// 10 CHIP at 10 coins per chip -> 100 GB
	source := NewMoney(10_000_000, CurrencyChip)
	rate := decimal.NewFromInt(1).Div(decimal.RequireFromString("0.1"))

	target := source.Convert(CurrencyCoin, rate)

	assert.Equal(t, CurrencyCoin, target.Currency)
	assert.Equal(t, int64(100_000_000), target.Amount)
}

func TestMoney_Convert_RoundsDown(t *testing.T) {
	// 0.000005 GB at 0.1 -> 0.0000005 CHIP, truncated to zero micros.
	source := NewMoney(5, CurrencyCoin)
	rate := decimal.RequireFromString("0.1")

	target := source.Convert(CurrencyChip, rate)

	assert.Equal(t, int64(0), target.Amount)
}

func TestParseAmount(t *testing.T) {
	micros, err := ParseAmount("12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(12_500_000), micros)

	micros, err = ParseAmount("200")
	require.NoError(t, err)
	assert.Equal(t, int64(200_000_000), micros)

	_, err = ParseAmount("twelve")
	assert.Error(t, err)
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "12.50 GB", NewMoney(12_500_000, CurrencyCoin).String())
	assert.Equal(t, "0.10 CHIP", NewMoney(100_000, CurrencyChip).String())
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency(CurrencyCoin))
	assert.True(t, ValidCurrency(CurrencyChip))
	assert.False(t, ValidCurrency("USD"))
	assert.False(t, ValidCurrency(""))
}
