package domain

import "fmt"

// StockPolicy decides what happens when a cart line would exceed the
// catalog stock.
type StockPolicy string

const (
	// StockPolicyNone ignores stock entirely.
	StockPolicyNone StockPolicy = "none"
	// StockPolicyWarn adds the item and logs a warning.
	StockPolicyWarn StockPolicy = "warn"
	// StockPolicyReject refuses the add.
	StockPolicyReject StockPolicy = "reject"
)

// ParseStockPolicy parses a configured policy name.
func ParseStockPolicy(s string) (StockPolicy, error) {
	switch p := StockPolicy(s); p {
	case StockPolicyNone, StockPolicyWarn, StockPolicyReject:
		return p, nil
	case "":
		return StockPolicyNone, nil
	default:
		return "", fmt.Errorf("unknown stock policy %q", s)
	}
}

// ExceedsStock reports whether one more unit on top of inCart goes beyond
// stock.
func ExceedsStock(inCart, stock int) bool {
	return inCart+1 > stock
}
