package invoice

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders amount as Indian rupees, for example ₹1,180.00.
func FormatINR(amount float64) string {
	return inrPrinter.Sprintf("%v%v",
		currency.Symbol(currency.INR),
		number.Decimal(amount, number.Scale(2)),
	)
}
