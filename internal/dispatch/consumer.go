package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/buildrelay/procurement-backend/pkg/enums"
	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
	"github.com/buildrelay/procurement-backend/pkg/logger"
	"github.com/buildrelay/procurement-backend/pkg/outbox"
)

type dispatchRunner interface {
	Dispatch(ctx context.Context, orderID uuid.UUID) (*Result, error)
}

// Consumer watches order_paid events and triggers procurement dispatch.
// Dispatch is resumable, so redelivered messages are harmless.
type Consumer struct {
	dispatcher   dispatchRunner
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewConsumer(dispatcher dispatchRunner, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dispatcher:   dispatcher,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

type orderPaidPayload struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderPaid) {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}

	var payload orderPaidPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse order_paid payload", err)
		return true
	}
	if payload.OrderID == uuid.Nil {
		c.logg.Error(logCtx, "order_paid payload missing order id", errors.New("empty order id"))
		return true
	}

	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())
	result, err := c.dispatcher.Dispatch(ctx, payload.OrderID)
	if err != nil {
		// An order that already moved past paid (cancelled, already
		// dispatched) is a stale delivery, not a failure.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			c.logg.Info(logCtx, "skipping dispatch for order no longer in paid status")
			return true
		}
		c.logg.Error(logCtx, "dispatch failed", err)
		return false
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"submitted": len(result.Submitted),
		"failed":    len(result.Failed),
	})
	c.logg.Info(logCtx, "dispatch completed")
	return true
}
