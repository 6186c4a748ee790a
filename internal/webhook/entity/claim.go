package entity

// Claim is one line item the reconciler wants to mark purchased. ItemID is
// the registry item the storefront attached to the line item; zero means
// the line item carried none and matching falls back to VariantID,
// narrowed to ListID when that is known.
type Claim struct {
	LineItemID string
	ItemID     int64
	ListID     int64
	VariantID  string
}

func (c Claim) Explicit() bool { return c.ItemID > 0 }

// Match is a registry item marked purchased by a claim. Claim is the index
// of that claim in the slice passed to Apply.
type Match struct {
	Claim      int
	LineItemID string
	ItemID     int64
	ListID     int64
	ListTitle  string
	Fallback   bool
}

// ApplyResult is the outcome of applying one order's claims.
type ApplyResult struct {
	Matches []Match
	// Duplicate is set when the order was already reconciled; variant
	// fallback claims are skipped for duplicates.
	Duplicate bool
}
