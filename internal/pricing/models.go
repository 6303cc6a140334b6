package pricing

// Amounts are expressed in minor units (cents) using int64.

// Rate is the effective per-minute price for one service offering.
type Rate struct {
	Service  string `json:"service"`
	Currency string `json:"currency"`

	// RatePerMinuteMinor is the price per started billing increment.
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor"`

	// BillingIncrementSeconds (60 for per-minute, 1 for per-second billing).
	BillingIncrementSeconds int `json:"billing_increment_seconds"`

	Description string `json:"description,omitempty"`
}

// Quote is the computed price for a requested volume of minutes.
type Quote struct {
	Service  string `json:"service"`
	Currency string `json:"currency"`

	Minutes            int   `json:"minutes"`
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor"`
	TotalMinor         int64 `json:"total_minor"`

	Description string `json:"description,omitempty"`
}
