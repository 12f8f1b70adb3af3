package report

import "github.com/shopspring/decimal"

// Totals are computed over the filtered subset, never over a page.
type Totals struct {
	Count     int
	Amount    decimal.Decimal
	Secondary *decimal.Decimal
}

func Aggregate(records []Record, def *Definition) Totals {
	t := Totals{Count: len(records), Amount: decimal.Zero}

	var secondary decimal.Decimal
	for _, rec := range records {
		amount := rec.Amount(def.AmountField)
		t.Amount = t.Amount.Add(amount)
		if def.Secondary != nil && rec.Equals(def.Secondary.Field, def.Secondary.Value) {
			secondary = secondary.Add(amount)
		}
	}
	if def.Secondary != nil {
		t.Secondary = &secondary
	}
	return t
}
