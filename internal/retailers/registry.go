package retailers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildrelay/procurement-backend/pkg/config"
	"github.com/buildrelay/procurement-backend/pkg/errors"
)

// Registry resolves retailers by identifier.
type Registry struct {
	byID map[string]Retailer
}

// NewRegistry builds a registry from explicit retailer implementations.
// Duplicate identifiers are rejected.
func NewRegistry(partners ...Retailer) (*Registry, error) {
	byID := make(map[string]Retailer, len(partners))
	for _, partner := range partners {
		if partner == nil || partner.ID() == "" {
			return nil, errors.New(errors.CodeValidation, "retailer with empty id")
		}
		if _, exists := byID[partner.ID()]; exists {
			return nil, errors.New(errors.CodeValidation,
				fmt.Sprintf("duplicate retailer id %q", partner.ID()))
		}
		byID[partner.ID()] = partner
	}
	return &Registry{byID: byID}, nil
}

// NewRegistryFromConfig builds HTTP-backed partner clients for every
// configured retail partner. httpClient may be nil, in which case each
// partner gets a client bounded by submitTimeout.
func NewRegistryFromConfig(cfg config.RetailerConfig, httpClient *http.Client) (*Registry, error) {
	if httpClient == nil {
		timeout := cfg.SubmitTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	partners := make([]Retailer, 0, len(cfg.Partners))
	for _, partner := range cfg.Partners {
		client, err := NewPartnerClient(partner, WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("building retailer %q: %w", partner.ID, err)
		}
		partners = append(partners, client)
	}
	return NewRegistry(partners...)
}

// Get returns the retailer registered under id.
func (r *Registry) Get(id string) (Retailer, error) {
	partner, ok := r.byID[id]
	if !ok {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown retailer %q", id))
	}
	return partner, nil
}

// Has reports whether a retailer is registered under id.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs lists registered retailer identifiers in stable order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DiscountRates returns the per-retailer contractor discount rates for the
// pricing calculator.
func (r *Registry) DiscountRates() map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal, len(r.byID))
	for id, partner := range r.byID {
		rates[id] = partner.DiscountRate()
	}
	return rates
}
