package pricing

import (
	"context"
	"strings"
	"sync"
)

// MemoryRepo is a simple in-memory rate table. Rates change rarely enough
// that a seeded table is the production configuration here.
type MemoryRepo struct {
	mu    sync.Mutex
	rates map[string]Rate
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rates: map[string]Rate{}} }

// NewDefaultRepo seeds the service offerings the voice assistant quotes.
func NewDefaultRepo() *MemoryRepo {
	r := NewMemoryRepo()
	r.Put(Rate{Service: "voice-campaign", Currency: "USD", RatePerMinuteMinor: 45, BillingIncrementSeconds: 60, Description: "Outbound marketing voice campaign"})
	r.Put(Rate{Service: "appointment-reminder", Currency: "USD", RatePerMinuteMinor: 30, BillingIncrementSeconds: 60, Description: "Automated appointment reminders"})
	r.Put(Rate{Service: "lead-qualification", Currency: "USD", RatePerMinuteMinor: 60, BillingIncrementSeconds: 60, Description: "Inbound lead qualification"})
	return r
}

func (r *MemoryRepo) Put(rate Rate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[normalize(rate.Service)] = rate
}

func (r *MemoryRepo) FindRate(ctx context.Context, service string) (Rate, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate, ok := r.rates[normalize(service)]
	return rate, ok, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
