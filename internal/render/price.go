package render

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const (
	DefaultPriceFormat    = "#.###,##"
	DefaultCurrencySymbol = "$"
	priceUnavailable      = "N/A"
)

// PriceFormatter renders prices in the shop's locale, e.g. "$1.234,50".
type PriceFormatter struct {
	Format string
	Symbol string
}

func NewPriceFormatter(format, symbol string) PriceFormatter {
	if format == "" {
		format = DefaultPriceFormat
	}
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	return PriceFormatter{Format: format, Symbol: symbol}
}

func (f PriceFormatter) FormatPrice(price float64) string {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return priceUnavailable
	}
	return f.Symbol + humanize.FormatFloat(f.Format, price)
}

// ValidatePriceFormat reports a format humanize would reject at render time.
func ValidatePriceFormat(format string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid price format %q: %v", format, r)
		}
	}()
	humanize.FormatFloat(format, 1234.5)
	return nil
}
