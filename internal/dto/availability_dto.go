package dto

// Availability classification levels, ordered from worst to best.
const (
	AvailabilityOutOfStock   = "out_of_stock"
	AvailabilityLowStock     = "low_stock"
	AvailabilityNeedsReorder = "needs_reorder"
	AvailabilityInStock      = "in_stock"
)

// AvailabilityResponse classifies one product for display. It reads current
// counters without locking, so it may lag in-flight reservations — the
// authoritative check is the locked reserve itself.
type AvailabilityResponse struct {
	ProductID      string `json:"product_id"`
	Status         string `json:"status"`
	AvailableStock int    `json:"available_stock"`
	OnHandStock    int    `json:"on_hand_stock"`
	NeedsReorder   bool   `json:"needs_reorder"`
}

// AvailabilityCheckItem is one cart line in a batch pre-check.
type AvailabilityCheckItem struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// AvailabilityCheckRequest pre-checks a whole cart before checkout.
type AvailabilityCheckRequest struct {
	Items []AvailabilityCheckItem `json:"items" validate:"required,min=1,dive"`
}

// AvailabilityCheckResult reports per-item availability for the pre-check.
type AvailabilityCheckResult struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	InStock   bool   `json:"in_stock"`
}
