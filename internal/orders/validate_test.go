package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBuyer() BuyerInfo {
	return BuyerInfo{
		FullName:        "Maria Santos",
		ContactNumber:   "+63917123456",
		BarangayID:      "b1",
		DeliveryAddress: "123 Rizal St",
	}
}

func TestValidateBuyerInfo(t *testing.T) {
	assert.NoError(t, ValidateBuyerInfo(validBuyer()))

	cases := []struct {
		name   string
		mutate func(*BuyerInfo)
		field  string
	}{
		{"missing name", func(b *BuyerInfo) { b.FullName = "" }, "full_name"},
		{"missing phone", func(b *BuyerInfo) { b.ContactNumber = "" }, "contact_number"},
		{"local format phone", func(b *BuyerInfo) { b.ContactNumber = "0917123456" }, "contact_number"},
		{"eight digits", func(b *BuyerInfo) { b.ContactNumber = "+6391712345" }, "contact_number"},
		{"ten digits", func(b *BuyerInfo) { b.ContactNumber = "+639171234567" }, "contact_number"},
		{"letters in phone", func(b *BuyerInfo) { b.ContactNumber = "+63917abc456" }, "contact_number"},
		{"missing barangay", func(b *BuyerInfo) { b.BarangayID = "" }, "barangay_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBuyer()
			tc.mutate(&b)
			err := ValidateBuyerInfo(b)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestValidateItems(t *testing.T) {
	assert.NoError(t, ValidateItems([]CheckoutItem{{ProductID: "p1", Qty: 2}}))

	var vErr *ValidationError
	require.ErrorAs(t, ValidateItems(nil), &vErr)

	require.ErrorAs(t, ValidateItems([]CheckoutItem{{ProductID: "", Qty: 1}}), &vErr)
	require.ErrorAs(t, ValidateItems([]CheckoutItem{{ProductID: "p1", Qty: 0}}), &vErr)
	require.ErrorAs(t, ValidateItems([]CheckoutItem{{ProductID: "p1", Qty: -1}}), &vErr)
	require.ErrorAs(t, ValidateItems([]CheckoutItem{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p1", Qty: 2},
	}), &vErr)
}

func TestPartitionBySeller(t *testing.T) {
	products := map[string]Product{
		"p1": {ID: "p1", SellerID: "s2", PriceCents: 100},
		"p2": {ID: "p2", SellerID: "s1", PriceCents: 200},
		"p3": {ID: "p3", SellerID: "s2", PriceCents: 300},
	}
	items := []CheckoutItem{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 2},
		{ProductID: "p3", Qty: 3},
	}

	groups := partitionBySeller(items, products)
	require.Len(t, groups, 2)
	// sorted by seller id
	assert.Equal(t, "s1", groups[0].SellerID)
	assert.Equal(t, []CheckoutItem{{ProductID: "p2", Qty: 2}}, groups[0].Items)
	assert.Equal(t, "s2", groups[1].SellerID)
	require.Len(t, groups[1].Items, 2)
}

func TestSortedByProduct(t *testing.T) {
	in := []CheckoutItem{{ProductID: "c", Qty: 1}, {ProductID: "a", Qty: 1}, {ProductID: "b", Qty: 1}}
	out := sortedByProduct(in)
	assert.Equal(t, "a", out[0].ProductID)
	assert.Equal(t, "b", out[1].ProductID)
	assert.Equal(t, "c", out[2].ProductID)
	// input untouched
	assert.Equal(t, "c", in[0].ProductID)
}

func TestUnitPriceCents(t *testing.T) {
	discount := 800
	zero := 0
	higher := 1500

	assert.Equal(t, 1000, Product{PriceCents: 1000}.UnitPriceCents())
	assert.Equal(t, 800, Product{PriceCents: 1000, DiscountedCents: &discount}.UnitPriceCents())
	assert.Equal(t, 1000, Product{PriceCents: 1000, DiscountedCents: &zero}.UnitPriceCents())
	assert.Equal(t, 1000, Product{PriceCents: 1000, DiscountedCents: &higher}.UnitPriceCents())
}

func TestGroupTotalCents(t *testing.T) {
	discount := 90
	products := map[string]Product{
		"p1": {ID: "p1", PriceCents: 100},
		"p2": {ID: "p2", PriceCents: 200, DiscountedCents: &discount},
	}
	items := []CheckoutItem{{ProductID: "p1", Qty: 3}, {ProductID: "p2", Qty: 2}}
	assert.Equal(t, 3*100+2*90, groupTotalCents(items, products))
}
