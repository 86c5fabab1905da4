package invoice

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxUnitPrice is the largest unit price a line item may carry
var MaxUnitPrice = decimal.New(1, 9)

const (
	// integer digits of MaxUnitPrice
	maxPriceIntegerDigits = 10
	maxPriceScale         = 12
)

var (
	ErrPriceInvalid   = errors.New("price is not a number")
	ErrPriceTooLarge  = errors.New("price exceeds " + MaxUnitPrice.StringFixed(2))
	ErrPricePrecision = errors.New("price has too many decimal places")
)

// ParsePrice parses a submitted price and returns it rounded to cents
func ParsePrice(value string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, ErrPriceInvalid
	}
	return NormalizePrice(price)
}

// NormalizePrice bounds a price and rounds it to cents. The bounds are
// checked on the exponent and digit count before any arithmetic, so a short
// input such as 1e20000000 never gets expanded.
func NormalizePrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsZero() {
		return decimal.Zero, nil
	}
	if err := checkPrice(price); err != nil {
		return decimal.Zero, err
	}
	return price.Round(2), nil
}

func checkPrice(price decimal.Decimal) error {
	if price.Exponent() < -maxPriceScale {
		return ErrPricePrecision
	}
	if int64(price.NumDigits())+int64(price.Exponent()) > maxPriceIntegerDigits {
		return ErrPriceTooLarge
	}
	if price.Abs().GreaterThan(MaxUnitPrice) {
		return ErrPriceTooLarge
	}
	return nil
}
