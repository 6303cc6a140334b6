package funcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"callpulse/internal/config"
	"callpulse/internal/pricing"

	"github.com/google/uuid"
)

// NewBuiltinRegistry wires the handlers the assistant is configured with:
// company info, order lookup, appointment scheduling and pricing quotes.
func NewBuiltinRegistry(company config.CompanyConfig, quotes *pricing.Service) *Registry {
	r := NewRegistry()
	r.Register("get_company_info", companyInfoHandler(company))
	r.Register("lookup_order", lookupOrderHandler())
	r.Register("schedule_appointment", scheduleAppointmentHandler(time.Now))
	r.Register("get_pricing", pricingHandler(quotes))
	return r
}

func companyInfoHandler(company config.CompanyConfig) Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]string{
			"name":  company.Name,
			"phone": company.Phone,
			"email": company.Email,
			"hours": company.Hours,
		}, nil
	}
}

// Orders live with the external commerce system; the assistant only needs a
// shaped answer. Unknown ids get an explicit not-found result, not an error.
func lookupOrderHandler() Handler {
	type params struct {
		OrderID string `json:"order_id"`
	}
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p params
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("lookup_order: bad parameters: %w", err)
			}
		}
		if strings.TrimSpace(p.OrderID) == "" {
			return nil, errors.New("lookup_order: order_id required")
		}
		return map[string]any{
			"order_id": p.OrderID,
			"found":    false,
			"message":  "No order found with that id. A specialist will follow up.",
		}, nil
	}
}

func scheduleAppointmentHandler(clock func() time.Time) Handler {
	type params struct {
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Date     string `json:"date"`
		TimeSlot string `json:"time"`
	}
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p params
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("schedule_appointment: bad parameters: %w", err)
			}
		}
		if p.Date == "" || p.TimeSlot == "" {
			return nil, errors.New("schedule_appointment: date and time required")
		}
		return map[string]any{
			"confirmation_id": uuid.NewString(),
			"name":            p.Name,
			"phone":           p.Phone,
			"date":            p.Date,
			"time":            p.TimeSlot,
			"booked_at":       clock().UTC().Format(time.RFC3339),
		}, nil
	}
}

func pricingHandler(quotes *pricing.Service) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req pricing.QuoteRequest
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("get_pricing: bad parameters: %w", err)
			}
		}
		if req.Minutes <= 0 {
			req.Minutes = 1
		}
		q, err := quotes.QuoteCall(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("get_pricing: %w", err)
		}
		return q, nil
	}
}
