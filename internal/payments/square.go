package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/buildrelay/procurement-backend/pkg/config"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
)

// SquareGateway implements Gateway against the Square Payments API.
type SquareGateway struct {
	sdk        *sqclient.Client
	locationID string
	logger     *logger.Logger
}

// NewSquareGateway validates credentials and builds the Square adapter.
func NewSquareGateway(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*SquareGateway, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	gw := &SquareGateway{
		sdk:        sdk,
		locationID: strings.TrimSpace(cfg.LocationID),
		logger:     logg,
	}
	if logg != nil {
		logg.Info(ctx, "square payment gateway initialized")
	}
	return gw, nil
}

// Capture creates a Square payment for the order's grand total.
func (g *SquareGateway) Capture(ctx context.Context, input CaptureInput) (*CaptureResult, error) {
	if g == nil || g.sdk == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square gateway not configured")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capture amount must be positive")
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	currency := sq.Currency(input.Currency.String())
	amount := input.AmountCents
	referenceID := input.OrderID.String()
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: input.IdempotencyKey,
		SourceID:       input.SourceID,
		AmountMoney: &sq.Money{
			Amount:   &amount,
			Currency: &currency,
		},
		ReferenceID: &referenceID,
	}
	if g.locationID != "" {
		locationID := g.locationID
		req.LocationID = &locationID
	}

	g.log(ctx, "request", map[string]any{"order_id": referenceID, "amount": input.AmountCents})

	resp, err := g.sdk.Payments.Create(ctx, req)
	if err != nil {
		g.log(ctx, "error", map[string]any{"order_id": referenceID, "error": err.Error()})
		return nil, mapSquareError(err)
	}

	payment := resp.GetPayment()
	transactionID := stringValue(payment.GetID())
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment id")
	}

	g.log(ctx, "response", map[string]any{
		"order_id":   referenceID,
		"payment_id": transactionID,
		"status":     stringValue(payment.GetStatus()),
	})
	return &CaptureResult{TransactionID: transactionID}, nil
}

func (g *SquareGateway) log(ctx context.Context, phase string, fields map[string]any) {
	if g == nil || g.logger == nil {
		return
	}
	logFields := map[string]any{"operation": "create_payment", "phase": phase}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = g.logger.WithFields(ctx, logFields)
	if phase == "error" {
		g.logger.Error(ctx, "square create_payment", errors.New(fmt.Sprint(fields["error"])))
		return
	}
	g.logger.Info(ctx, fmt.Sprintf("square %s", phase))
}

// mapSquareError classifies Square failures: card problems are terminal
// declines, everything else on the wire is retryable with the same key.
func mapSquareError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryPaymentMethodError ||
				sqErr.Category == sq.ErrorCategoryRefundError {
				code = pkgerrors.CodePaymentDeclined
				break
			}
		}
		return pkgerrors.Wrap(code, err, "square payment capture failed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square payment capture failed")
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusPaymentRequired:
		return pkgerrors.CodePaymentDeclined
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
