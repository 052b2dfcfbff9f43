// Package pricing computes appointment totals. Two strategies exist: the
// legacy add-on model (v1) and the current flat-fee model (v2). Which one
// applies is a configuration choice.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"nailsync/internal/model"
)

// Version names a pricing strategy.
type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
)

// DefaultAddOnQuantity is one add-on on every nail.
const DefaultAddOnQuantity = 10

// SoakOffFee is the flat surcharge for removing existing product.
var SoakOffFee = decimal.NewFromInt(10)

// Request holds every parameter either strategy may read.
type Request struct {
	ServiceType model.ServiceType
	NailLength  model.NailLength
	AddOns      []model.AddOn

	// BasePrice is the operator-entered fee used by v2.
	BasePrice decimal.Decimal
	SoakOff   bool
}

// Strategy returns a non-negative total for a request. Unknown service or
// add-on types panic: they are configuration errors, not user input.
type Strategy interface {
	Version() Version
	Total(req Request) decimal.Decimal
}

// ForVersion returns the strategy for v.
func ForVersion(v Version) (Strategy, error) {
	switch v {
	case V1:
		return AddOnPricing{}, nil
	case V2, "":
		return FlatPricing{}, nil
	default:
		return nil, fmt.Errorf("pricing: unknown version %q", v)
	}
}

// ForAppointment builds a request from an appointment.
func ForAppointment(a model.Appointment) Request {
	return Request{
		ServiceType: a.ServiceType,
		NailLength:  a.NailLength,
		AddOns:      a.AddOns,
		BasePrice:   a.Price,
		SoakOff:     a.SoakOff,
	}
}
