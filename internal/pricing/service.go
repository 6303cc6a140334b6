package pricing

import (
	"context"
	"errors"
)

var (
	ErrPricingNotFound = errors.New("pricing not found")
	ErrInvalidQuoteReq = errors.New("invalid quote request")
)

// RateRepository abstracts rate lookups so the calculation stays testable
// independent of where rates live.
type RateRepository interface {
	FindRate(ctx context.Context, service string) (Rate, bool, error)
}

// Service computes price quotes. Pure calculation plus repository lookups;
// it never books charges anywhere.
type Service struct {
	repo RateRepository
}

func NewService(repo RateRepository) *Service { return &Service{repo: repo} }

type QuoteRequest struct {
	Service string `json:"service"`
	Minutes int    `json:"minutes"`
}

// QuoteCall prices the requested minutes against the effective rate.
func (s *Service) QuoteCall(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.Service == "" || req.Minutes <= 0 {
		return Quote{}, ErrInvalidQuoteReq
	}
	if s.repo == nil {
		return Quote{}, errors.New("pricing: repository not configured")
	}

	rate, ok, err := s.repo.FindRate(ctx, req.Service)
	if err != nil {
		return Quote{}, err
	}
	if !ok {
		return Quote{}, ErrPricingNotFound
	}

	return Quote{
		Service:            rate.Service,
		Currency:           rate.Currency,
		Minutes:            req.Minutes,
		RatePerMinuteMinor: rate.RatePerMinuteMinor,
		TotalMinor:         rate.RatePerMinuteMinor * int64(req.Minutes),
		Description:        rate.Description,
	}, nil
}
