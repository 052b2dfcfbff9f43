package pricing

import "github.com/shopspring/decimal"

// FlatPricing is the current model: the operator's base price plus the
// soak-off surcharge. Service type and length do not affect it.
type FlatPricing struct{}

func (FlatPricing) Version() Version { return V2 }

func (FlatPricing) Total(req Request) decimal.Decimal {
	total := req.BasePrice
	if total.IsNegative() {
		total = decimal.Zero
	}
	if req.SoakOff {
		total = total.Add(SoakOffFee)
	}
	return total
}
