package retailers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrelay/procurement-backend/pkg/config"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/types"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testPartner() config.RetailerPartner {
	return config.RetailerPartner{
		ID:                   "home-supply",
		Name:                 "Home Supply Co",
		BaseURL:              "http://home-supply.test",
		APIKey:               "test-key",
		DiscountRate:         0.15,
		TaxExemptCertificate: "TX-EXEMPT-001",
		ProAccountID:         "pro-42",
	}
}

func testSubmitRequest() SubmitRequest {
	return SubmitRequest{
		PurchaseOrderID: uuid.New(),
		OrderID:         uuid.New(),
		Items: []SubmitItem{
			{ProductID: uuid.New(), Name: "2x4 stud", Quantity: 5, UnitPriceCents: 850},
		},
		TotalCents: 4250,
		DeliveryAddress: types.Address{
			Line1: "500 Jobsite Rd", City: "Austin", State: "TX", PostalCode: "78701",
		},
		Credentials: Credentials{TaxExemptCertificate: "TX-EXEMPT-001", ProAccountID: "pro-42"},
	}
}

func TestPartnerClientSubmit(t *testing.T) {
	const expectedURL = "http://home-supply.test/v1/pro/orders"
	respBody := `{"order_number":"HS-9001","tracking_number":"1Z999","estimated_delivery":"2026-09-05T00:00:00Z"}`

	var capturedURL string
	var capturedHeaders http.Header
	var capturedBody submitPayload

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &capturedBody))
		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewPartnerClient(testPartner(), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	req := testSubmitRequest()
	result, err := client.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, expectedURL, capturedURL)
	assert.Equal(t, "Bearer test-key", capturedHeaders.Get("Authorization"))
	assert.Equal(t, req.PurchaseOrderID.String(), capturedHeaders.Get("Idempotency-Key"))
	assert.Equal(t, "TX-EXEMPT-001", capturedBody.TaxExemptCertificate)
	assert.Equal(t, "pro-42", capturedBody.ProAccountID)
	assert.Equal(t, int64(4250), capturedBody.TotalCents)

	assert.Equal(t, "HS-9001", result.OrderNumber)
	assert.Equal(t, "1Z999", result.TrackingNumber)
	require.NotNil(t, result.EstimatedDelivery)
	assert.Equal(t, "2026-09-05", result.EstimatedDelivery.Format("2006-01-02"))
}

func TestPartnerClientSubmitRejection(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader(`upstream offline`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewPartnerClient(testPartner(), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), testSubmitRequest())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.True(t, pkgerrors.Retryable(err))
}

func TestPartnerClientSubmitMissingOrderNumber(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewPartnerClient(testPartner(), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), testSubmitRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no order number")
}

func TestNewPartnerClientValidation(t *testing.T) {
	_, err := NewPartnerClient(config.RetailerPartner{BaseURL: "http://x.test"})
	assert.Error(t, err)

	_, err = NewPartnerClient(config.RetailerPartner{ID: "x"})
	assert.Error(t, err)
}
