// Package words spells currency amounts in English.
package words

import (
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ones = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

// scales[i] names 1000^(i+1)
var scales = []string{
	"thousand", "million", "billion", "trillion", "quadrillion", "quintillion",
	"sextillion", "septillion", "octillion", "nonillion", "decillion",
}

var (
	thousand = big.NewInt(1000)
	// largestScale is 1000^len(scales), the first value without its own name.
	largestScale = new(big.Int).Exp(thousand, big.NewInt(int64(len(scales)+1)), nil)
)

// Currency spells a USD amount, e.g. 1234.56 becomes
// "one thousand two hundred thirty-four dollars, fifty-six cents".
// The amount is rounded to cents first and the word "and" is never used.
func Currency(amount decimal.Decimal) string {
	amount = amount.Round(2)

	prefix := ""
	if amount.IsNegative() {
		prefix = "minus "
		amount = amount.Neg()
	}

	dollars := amount.Truncate(0)
	cents := amount.Sub(dollars).Shift(2).IntPart()

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(Integer(dollars.BigInt()))
	b.WriteString(unit(dollars.Equal(decimal.NewFromInt(1)), " dollar", " dollars"))
	b.WriteString(", ")
	b.WriteString(Integer(big.NewInt(cents)))
	b.WriteString(unit(cents == 1, " cent", " cents"))
	return b.String()
}

// Integer spells a non-negative integer of any size
func Integer(n *big.Int) string {
	if n.Sign() == 0 {
		return ones[0]
	}
	if n.Sign() < 0 {
		return "minus " + Integer(new(big.Int).Neg(n))
	}

	if n.Cmp(largestScale) >= 0 {
		// Past the named scales: spell the high part in units of the largest name.
		unitValue := new(big.Int).Div(largestScale, thousand)
		high, low := new(big.Int).DivMod(n, unitValue, new(big.Int))
		out := Integer(high) + " " + scales[len(scales)-1]
		if low.Sign() > 0 {
			out += " " + Integer(low)
		}
		return out
	}

	var groups []int
	rest := new(big.Int).Set(n)
	mod := new(big.Int)
	for rest.Sign() > 0 {
		rest.DivMod(rest, thousand, mod)
		groups = append(groups, int(mod.Int64()))
	}

	parts := make([]string, 0, len(groups)*2)
	for i := len(groups) - 1; i >= 0; i-- {
		if groups[i] == 0 {
			continue
		}
		parts = append(parts, hundreds(groups[i]))
		if i > 0 {
			parts = append(parts, scales[i-1])
		}
	}
	return strings.Join(parts, " ")
}

// hundreds spells 1..999
func hundreds(n int) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, ones[n/100], "hundred")
		n %= 100
	}
	switch {
	case n == 0:
	case n < 20:
		parts = append(parts, ones[n])
	case n%10 == 0:
		parts = append(parts, tens[n/10])
	default:
		parts = append(parts, tens[n/10]+"-"+ones[n%10])
	}
	return strings.Join(parts, " ")
}

func unit(singular bool, one, many string) string {
	if singular {
		return one
	}
	return many
}

// Capitalize upper-cases the first letter and leaves the rest unchanged
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
