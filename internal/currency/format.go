package currency

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// symbols maps display currencies to their user-facing symbol.
var symbols = map[string]string{
	"BRL": "R$",
	"USD": "$",
	"EUR": "€",
}

// locales picks the number formatting locale per display currency, so BRL
// renders "R$ 54,99" while USD renders "$ 54.99".
var locales = map[string]language.Tag{
	"BRL": language.BrazilianPortuguese,
	"USD": language.AmericanEnglish,
	"EUR": language.German,
}

// Format renders an amount as a display string in the given currency.
func Format(amount float64, display string) string {
	tag, ok := locales[display]
	if !ok {
		tag = language.AmericanEnglish
	}
	sym, ok := symbols[display]
	if !ok {
		sym = display
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%s %.2f", sym, amount)
}
