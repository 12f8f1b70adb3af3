package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DateLayout renders dates like "Jan 5, 2024".
const DateLayout = "Jan 2, 2006"

const moneyScale = 2

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Formatter renders money, dates and status values for display. All money
// is shown in one currency and locale regardless of the record.
type Formatter struct {
	unit   currency.Unit
	symbol string
	group  string
	point  string
}

func NewFormatter(locale, code, symbol string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	if symbol == "" {
		symbol = unit.String()
	}
	group, point := separators(message.NewPrinter(tag))
	return &Formatter{
		unit:   unit,
		symbol: symbol,
		group:  group,
		point:  point,
	}, nil
}

// separators reads the locale's grouping and decimal marks off a sample
// number, falling back to "," and "." for locales without Latin digits.
func separators(p *message.Printer) (group, point string) {
	sample := p.Sprint(number.Decimal(1234.5, number.Scale(1)))
	rest, ok := strings.CutPrefix(sample, "1")
	if ok {
		rest, ok = strings.CutSuffix(rest, "5")
	}
	if ok {
		if g, pt, found := strings.Cut(rest, "234"); found && pt != "" {
			return g, pt
		}
	}
	return ",", "."
}

// Currency is the ISO code amounts are rendered in.
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Money formats an amount with the currency symbol, grouped thousands and
// two decimals, e.g. "Ksh 1,234.50".
// The digits come from the decimal itself, so large amounts keep every cent.
func (f *Formatter) Money(amount decimal.Decimal) string {
	fixed := amount.StringFixed(moneyScale)
	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return f.symbol + " " + sign + groupDigits(whole, f.group) + f.point + frac
}

func groupDigits(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Date formats a backend timestamp in UTC. Unparseable input is returned as is.
func (f *Formatter) Date(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(DateLayout)
		}
	}
	return raw
}

var statusReplacer = strings.NewReplacer("_", " ", "-", " ")

// StatusLabel turns a raw status such as "payment_confirmed" or
// "rejected-by-inventory" into space-separated display text.
func StatusLabel(raw string) string {
	return statusReplacer.Replace(raw)
}
