package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"nailsync/internal/model"
)

var (
	gelXPrices = map[model.NailLength]decimal.Decimal{
		model.LengthShortMedium: decimal.NewFromInt(50),
		model.LengthLongXLong:   decimal.NewFromInt(60),
	}
	flatServicePrices = map[model.ServiceType]decimal.Decimal{
		model.ServiceGelManicure: decimal.NewFromInt(40),
		model.ServiceBuilderGel:  decimal.NewFromInt(50),
	}
	addOnPrices = map[model.AddOnType]decimal.Decimal{
		model.AddOnFrenchTip:     decimal.NewFromInt(1),
		model.AddOnSimpleDesign:  decimal.NewFromInt(1),
		model.AddOnComplexDesign: decimal.NewFromInt(2),
		model.AddOn3DGel:         decimal.NewFromInt(2),
		model.AddOnCharms:        decimal.NewFromInt(2),
	}
)

// AddOnPricing is the legacy model: a base price per service (per length
// for Gel X) plus per-nail add-ons.
type AddOnPricing struct{}

func (AddOnPricing) Version() Version { return V1 }

func (AddOnPricing) Total(req Request) decimal.Decimal {
	total := BasePrice(req.ServiceType, req.NailLength)
	for _, a := range req.AddOns {
		if a.Quantity <= 0 {
			panic(fmt.Sprintf("pricing: add-on %s has quantity %d; omit it instead", a.Type, a.Quantity))
		}
		total = total.Add(a.Total())
	}
	return total
}

// BasePrice returns the v1 base fee. The length only matters for Gel X and
// defaults to the shortest variant.
func BasePrice(st model.ServiceType, length model.NailLength) decimal.Decimal {
	if st == model.ServiceGelX {
		if length == "" {
			length = model.DefaultNailLength
		}
		p, ok := gelXPrices[length]
		if !ok {
			panic(fmt.Sprintf("pricing: no Gel X price for length %q", length))
		}
		return p
	}
	p, ok := flatServicePrices[st]
	if !ok {
		panic(fmt.Sprintf("pricing: no base price for service %q", st))
	}
	return p
}

// AddOnUnitPrice returns the per-nail price of an add-on type.
func AddOnUnitPrice(t model.AddOnType) decimal.Decimal {
	p, ok := addOnPrices[t]
	if !ok {
		panic(fmt.Sprintf("pricing: no price for add-on %q", t))
	}
	return p
}

// NewAddOn builds an add-on with its configured unit price. A quantity of
// zero or less means DefaultAddOnQuantity.
func NewAddOn(t model.AddOnType, quantity int) model.AddOn {
	if quantity <= 0 {
		quantity = DefaultAddOnQuantity
	}
	return model.AddOn{
		Type:         t,
		Quantity:     quantity,
		PricePerNail: AddOnUnitPrice(t),
	}
}
