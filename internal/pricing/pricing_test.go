package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nailsync/internal/model"
)

func TestAddOnPricing_Total(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want int64
	}{
		{
			name: "gel x short without add-ons is the base price",
			req:  Request{ServiceType: model.ServiceGelX, NailLength: model.LengthShortMedium},
			want: 50,
		},
		{
			name: "gel x long",
			req:  Request{ServiceType: model.ServiceGelX, NailLength: model.LengthLongXLong},
			want: 60,
		},
		{
			name: "unset length prices as shortest",
			req:  Request{ServiceType: model.ServiceGelX},
			want: 50,
		},
		{
			name: "length ignored for manicure",
			req:  Request{ServiceType: model.ServiceGelManicure, NailLength: model.LengthLongXLong},
			want: 40,
		},
		{
			name: "builder gel with french tip on all nails",
			req: Request{
				ServiceType: model.ServiceBuilderGel,
				AddOns:      []model.AddOn{NewAddOn(model.AddOnFrenchTip, 10)},
			},
			want: 60,
		},
		{
			name: "several add-ons sum exactly",
			req: Request{
				ServiceType: model.ServiceGelX,
				NailLength:  model.LengthLongXLong,
				AddOns: []model.AddOn{
					NewAddOn(model.AddOnCharms, 2),
					NewAddOn(model.AddOn3DGel, 3),
					NewAddOn(model.AddOnSimpleDesign, 0),
				},
			},
			want: 60 + 4 + 6 + 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddOnPricing{}.Total(tt.req)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s want %d", got, tt.want)
		})
	}
}

func TestAddOnPricing_ProgrammerErrorsPanic(t *testing.T) {
	assert.Panics(t, func() {
		AddOnPricing{}.Total(Request{ServiceType: "PEDICURE"})
	})
	assert.Panics(t, func() {
		AddOnPricing{}.Total(Request{
			ServiceType: model.ServiceGelManicure,
			AddOns:      []model.AddOn{{Type: model.AddOnCharms, Quantity: 0, PricePerNail: decimal.NewFromInt(2)}},
		})
	})
	assert.Panics(t, func() { NewAddOn("GLITTER", 1) })
}

func TestFlatPricing_Total(t *testing.T) {
	base := decimal.RequireFromString("45.50")

	got := FlatPricing{}.Total(Request{BasePrice: base})
	assert.True(t, got.Equal(base))

	got = FlatPricing{}.Total(Request{BasePrice: base, SoakOff: true})
	assert.True(t, got.Equal(decimal.RequireFromString("55.50")))

	got = FlatPricing{}.Total(Request{BasePrice: decimal.NewFromInt(-5)})
	assert.True(t, got.IsZero())
}

func TestForVersion(t *testing.T) {
	s, err := ForVersion(V1)
	require.NoError(t, err)
	assert.Equal(t, V1, s.Version())

	s, err = ForVersion("")
	require.NoError(t, err)
	assert.Equal(t, V2, s.Version())

	_, err = ForVersion("v9")
	assert.Error(t, err)
}
