package retailers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildrelay/procurement-backend/pkg/config"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/types"
)

const (
	proOrdersPath                = "v1/pro/orders"
	responseBodyReadLimit  int64 = 1024
	defaultSubmitTimeout         = 30 * time.Second
)

// PartnerClient submits purchase orders to one retail partner's pro-ordering
// API. It implements Retailer.
type PartnerClient struct {
	httpClient   *http.Client
	partner      config.RetailerPartner
	discountRate decimal.Decimal
}

// Option configures optional client behavior.
type Option func(*PartnerClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *PartnerClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewPartnerClient builds a client for one configured retail partner.
func NewPartnerClient(partner config.RetailerPartner, opts ...Option) (*PartnerClient, error) {
	if strings.TrimSpace(partner.ID) == "" {
		return nil, fmt.Errorf("retailer id is required")
	}
	if strings.TrimSpace(partner.BaseURL) == "" {
		return nil, fmt.Errorf("retailer %q: base URL is required", partner.ID)
	}

	client := &PartnerClient{
		partner:      partner,
		discountRate: decimal.NewFromFloat(partner.DiscountRate),
		httpClient:   &http.Client{Timeout: defaultSubmitTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *PartnerClient) ID() string   { return c.partner.ID }
func (c *PartnerClient) Name() string { return c.partner.Name }

func (c *PartnerClient) DiscountRate() decimal.Decimal { return c.discountRate }

func (c *PartnerClient) Credentials() Credentials {
	return Credentials{
		TaxExemptCertificate: c.partner.TaxExemptCertificate,
		ProAccountID:         c.partner.ProAccountID,
	}
}

type submitPayload struct {
	ReferenceID          string        `json:"reference_id"`
	OrderID              string        `json:"order_id"`
	Items                []SubmitItem  `json:"items"`
	TotalCents           int64         `json:"total_cents"`
	ShipTo               types.Address `json:"ship_to"`
	TaxExemptCertificate string        `json:"tax_exempt_certificate"`
	ProAccountID         string        `json:"pro_account_id,omitempty"`
}

// Submit places the purchase order with the retailer. Failures come back as
// dependency errors so the dispatcher treats them as retryable.
func (c *PartnerClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "retailer client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order has no items")
	}

	payload, err := json.Marshal(submitPayload{
		ReferenceID:          req.PurchaseOrderID.String(),
		OrderID:              req.OrderID.String(),
		Items:                req.Items,
		TotalCents:           req.TotalCents,
		ShipTo:               req.DeliveryAddress,
		TaxExemptCertificate: req.Credentials.TaxExemptCertificate,
		ProAccountID:         req.Credentials.ProAccountID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal submit request")
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(c.partner.BaseURL, "/"), proOrdersPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build submit request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.partner.APIKey)
	// Retailers use the purchase order id for replay detection.
	httpReq.Header.Set("Idempotency-Key", req.PurchaseOrderID.String())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute submit request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			fmt.Sprintf("retailer %s rejected submission", c.partner.ID))
	}

	var apiResp struct {
		OrderNumber       string `json:"order_number"`
		TrackingNumber    string `json:"tracking_number"`
		EstimatedDelivery string `json:"estimated_delivery"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode submit response")
	}
	if apiResp.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("retailer %s returned no order number", c.partner.ID))
	}

	result := &SubmitResult{
		OrderNumber:    apiResp.OrderNumber,
		TrackingNumber: apiResp.TrackingNumber,
	}
	if apiResp.EstimatedDelivery != "" {
		if ts, err := time.Parse(time.RFC3339, apiResp.EstimatedDelivery); err == nil {
			result.EstimatedDelivery = &ts
		}
	}
	return result, nil
}
