package words

import (
	"math/big"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInteger(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "zero"},
		{7, "seven"},
		{13, "thirteen"},
		{20, "twenty"},
		{42, "forty-two"},
		{100, "one hundred"},
		{101, "one hundred one"},
		{999, "nine hundred ninety-nine"},
		{1000, "one thousand"},
		{1234, "one thousand two hundred thirty-four"},
		{1000001, "one million one"},
		{2500000, "two million five hundred thousand"},
		{1000000000, "one billion"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Integer(big.NewInt(tt.n)))
		})
	}
}

func TestInteger_BeyondNamedScales(t *testing.T) {
	n, ok := new(big.Int).SetString("2000000000000000000000000000000000000", 10) // 2 * 10^36
	assert.True(t, ok)
	assert.Equal(t, "two thousand decillion", Integer(n))
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"zero", "0", "zero dollars, zero cents"},
		{"one dollar", "1", "one dollar, zero cents"},
		{"one cent", "0.01", "zero dollars, one cent"},
		{"example total", "24.98", "twenty-four dollars, ninety-eight cents"},
		{"thousands", "1234.56", "one thousand two hundred thirty-four dollars, fifty-six cents"},
		{"rounds half up to cents", "10.005", "ten dollars, one cent"},
		{"rounds into dollars", "0.999", "one dollar, zero cents"},
		{"large", "1000000.10", "one million dollars, ten cents"},
		{"negative", "-3.50", "minus three dollars, fifty cents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Currency(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestCurrency_NeverUsesAnd(t *testing.T) {
	for _, amount := range []string{"0", "101.01", "1100.11", "123456789.99", "100000.00"} {
		got := Currency(decimal.RequireFromString(amount))
		assert.NotContains(t, " "+got+" ", " and ", "amount %s", amount)
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Zero dollars", Capitalize("zero dollars"))
	assert.Equal(t, "", Capitalize(""))
	assert.Equal(t, "Émile", Capitalize("émile"))
	assert.True(t, strings.HasPrefix(Capitalize(Currency(decimal.NewFromInt(5))), "Five"))
}
