package orders

import (
	"regexp"
	"sort"
	"strconv"
)

// PH mobile numbers as the gateway normalizes them: +63 then 9 digits.
var phoneRE = regexp.MustCompile(`^\+63\d{9}$`)

func ValidateBuyerInfo(b BuyerInfo) error {
	if b.FullName == "" {
		return &ValidationError{Field: "full_name", Reason: "required"}
	}
	if !phoneRE.MatchString(b.ContactNumber) {
		return &ValidationError{Field: "contact_number", Reason: "must match +63 followed by 9 digits"}
	}
	if b.BarangayID == "" {
		return &ValidationError{Field: "barangay_id", Reason: "required"}
	}
	return nil
}

func ValidateItems(items []CheckoutItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return &ValidationError{Field: "items", Reason: "product_id required"}
		}
		if it.Qty <= 0 {
			return &ValidationError{Field: "items", Reason: "quantity must be positive for product " + it.ProductID}
		}
		if seen[it.ProductID] {
			return &ValidationError{Field: "items", Reason: "duplicate product " + it.ProductID}
		}
		seen[it.ProductID] = true
	}
	return nil
}

// sellerGroup is one seller's slice of a basket; checkout turns each group
// into its own order.
type sellerGroup struct {
	SellerID string
	Items    []CheckoutItem
}

// partitionBySeller groups basket items by the owning seller. Groups come
// back in sorted seller order so order creation is deterministic.
func partitionBySeller(items []CheckoutItem, products map[string]Product) []sellerGroup {
	bySeller := make(map[string][]CheckoutItem)
	for _, it := range items {
		sid := products[it.ProductID].SellerID
		bySeller[sid] = append(bySeller[sid], it)
	}
	sellers := make([]string, 0, len(bySeller))
	for sid := range bySeller {
		sellers = append(sellers, sid)
	}
	sort.Strings(sellers)

	out := make([]sellerGroup, 0, len(sellers))
	for _, sid := range sellers {
		out = append(out, sellerGroup{SellerID: sid, Items: bySeller[sid]})
	}
	return out
}

// sortedByProduct returns the items ordered by product id. Every code path
// that locks multiple inventory rows walks them in this order, which keeps
// concurrent transactions from deadlocking against each other.
func sortedByProduct(items []CheckoutItem) []CheckoutItem {
	out := make([]CheckoutItem, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func sortItemsByProduct(items []OrderItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
}

func itoa(n int) string { return strconv.Itoa(n) }

func groupTotalCents(items []CheckoutItem, products map[string]Product) int {
	total := 0
	for _, it := range items {
		total += products[it.ProductID].UnitPriceCents() * it.Qty
	}
	return total
}
