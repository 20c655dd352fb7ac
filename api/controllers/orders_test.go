package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalorders "github.com/buildrelay/procurement-backend/internal/orders"
	"github.com/buildrelay/procurement-backend/internal/payments"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
)

type stubOrderService struct {
	order       *models.MaterialOrder
	err         error
	createInput *internalorders.CreateOrderInput
	cancelInput *internalorders.CancelOrderInput
}

func (s *stubOrderService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.MaterialOrder, error) {
	s.createInput = &input
	return s.order, s.err
}

func (s *stubOrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error) {
	return s.order, s.err
}

func (s *stubOrderService) Cancel(ctx context.Context, input internalorders.CancelOrderInput) (*models.MaterialOrder, error) {
	s.cancelInput = &input
	return s.order, s.err
}

func (s *stubOrderService) MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error) {
	return s.order, s.err
}

func (s *stubOrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.MaterialOrder, error) {
	return s.order, s.err
}

type stubPaymentService struct {
	order *models.MaterialOrder
	err   error
	input *payments.PayInput
}

func (s *stubPaymentService) Pay(ctx context.Context, input payments.PayInput) (*models.MaterialOrder, error) {
	s.input = &input
	return s.order, s.err
}

func orderRouter(ordersSvc internalorders.Service, paymentsSvc payments.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", CreateOrder(ordersSvc, nil))
	r.Get("/orders/{orderId}", GetOrder(ordersSvc, nil))
	r.Post("/orders/{orderId}/pay", PayOrder(paymentsSvc, nil))
	r.Post("/orders/{orderId}/cancel", CancelOrder(ordersSvc, nil))
	r.Post("/orders/{orderId}/shipped", MarkOrderShipped(ordersSvc, nil))
	return r
}

func sampleOrder() *models.MaterialOrder {
	return &models.MaterialOrder{
		ID:                    uuid.New(),
		Status:                enums.MaterialOrderStatusPendingPayment,
		PaymentStatus:         enums.PaymentStatusPending,
		Currency:              enums.CurrencyUSD,
		ClientGrandTotalCents: 9720,
		Version:               1,
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	svc := &stubOrderService{order: sampleOrder()}
	router := orderRouter(svc, &stubPaymentService{})

	body := `{
		"estimate_id": "` + uuid.NewString() + `",
		"project_id": "` + uuid.NewString() + `",
		"tax_rate": 0.08,
		"items": [
			{"product_id": "` + uuid.NewString() + `", "name": "2x4 lumber", "retailer": "home-depot", "quantity": 5, "unit_price": 10}
		],
		"delivery_address": {"line1": "1 Main St", "city": "Austin", "state": "TX", "postal_code": "78701", "country": "US"}
	}`

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.createInput == nil {
		t.Fatal("service never received the create input")
	}
	if len(svc.createInput.Items) != 1 || svc.createInput.Items[0].Retailer != "home-depot" {
		t.Fatalf("unexpected items: %+v", svc.createInput.Items)
	}

	var envelope struct {
		Data models.MaterialOrder `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != svc.order.ID {
		t.Fatalf("unexpected order id: %s", envelope.Data.ID)
	}
}

func TestCreateOrderMissingItems(t *testing.T) {
	svc := &stubOrderService{}
	router := orderRouter(svc, &stubPaymentService{})

	body := `{"estimate_id": "` + uuid.NewString() + `", "project_id": "` + uuid.NewString() + `", "items": []}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.createInput != nil {
		t.Fatal("service should not be called on validation failure")
	}
}

func TestCreateOrderRejectsUnknownFields(t *testing.T) {
	router := orderRouter(&stubOrderService{}, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"bogus": true}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	router := orderRouter(&stubOrderService{}, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeNotFound, "material order not found")}
	router := orderRouter(svc, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestPayOrderRequiresSource(t *testing.T) {
	paymentsSvc := &stubPaymentService{}
	router := orderRouter(&stubOrderService{}, paymentsSvc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/pay", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if paymentsSvc.input != nil {
		t.Fatal("gateway should not be reached without a payment source")
	}
}

func TestPayOrderSuccess(t *testing.T) {
	order := sampleOrder()
	order.Status = enums.MaterialOrderStatusPaid
	paymentsSvc := &stubPaymentService{order: order}
	router := orderRouter(&stubOrderService{}, paymentsSvc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/pay", strings.NewReader(`{"source_id": "cnon:card-ok"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if paymentsSvc.input == nil || paymentsSvc.input.OrderID != order.ID {
		t.Fatalf("unexpected pay input: %+v", paymentsSvc.input)
	}
}

func TestPayOrderDeclined(t *testing.T) {
	paymentsSvc := &stubPaymentService{err: pkgerrors.New(pkgerrors.CodePaymentDeclined, "card declined")}
	router := orderRouter(&stubOrderService{}, paymentsSvc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/pay", strings.NewReader(`{"source_id": "cnon:card-bad"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", resp.Code)
	}
}

func TestCancelOrderAcceptsEmptyBody(t *testing.T) {
	svc := &stubOrderService{order: sampleOrder()}
	router := orderRouter(svc, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.cancelInput == nil || svc.cancelInput.Reason != "" {
		t.Fatalf("unexpected cancel input: %+v", svc.cancelInput)
	}
}

func TestCancelOrderCarriesReason(t *testing.T) {
	svc := &stubOrderService{order: sampleOrder()}
	router := orderRouter(svc, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", strings.NewReader(`{"reason": "client backed out"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.cancelInput == nil || svc.cancelInput.Reason != "client backed out" {
		t.Fatalf("unexpected cancel input: %+v", svc.cancelInput)
	}
}

func TestCancelOrderDuringDispatch(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "dispatch in flight; retry cancellation once it completes")}
	router := orderRouter(svc, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
