package domain

import "time"

// StockReading is one observation from the availability oracle: the state of
// a single product at a single pincode at a point in time.
type StockReading struct {
	Product    string
	URL        string
	Pincode    string
	Available  bool
	ObservedAt time.Time
}

// PendingAlert is a queued notification awaiting digest delivery. Rows are
// deduplicated per (user, product, pincode) while queued, so a product that
// flaps before the next flush produces one digest line, not many.
type PendingAlert struct {
	ID        int64
	ChatID    int64
	Product   string
	URL       string
	Pincode   string
	CreatedAt time.Time
}
