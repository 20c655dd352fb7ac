package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaterialOrderStatusTransitions(t *testing.T) {
	legal := []struct {
		from, to MaterialOrderStatus
	}{
		{MaterialOrderStatusPendingPayment, MaterialOrderStatusPaid},
		{MaterialOrderStatusPaid, MaterialOrderStatusPurchasing},
		{MaterialOrderStatusPurchasing, MaterialOrderStatusOrdered},
		{MaterialOrderStatusOrdered, MaterialOrderStatusShipped},
		{MaterialOrderStatusShipped, MaterialOrderStatusDelivered},
		{MaterialOrderStatusPendingPayment, MaterialOrderStatusCancelled},
		{MaterialOrderStatusPaid, MaterialOrderStatusCancelled},
		{MaterialOrderStatusShipped, MaterialOrderStatusCancelled},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from, to MaterialOrderStatus
	}{
		{MaterialOrderStatusPendingPayment, MaterialOrderStatusPurchasing},
		{MaterialOrderStatusPendingPayment, MaterialOrderStatusOrdered},
		{MaterialOrderStatusPaid, MaterialOrderStatusOrdered},
		{MaterialOrderStatusOrdered, MaterialOrderStatusPurchasing},
		{MaterialOrderStatusDelivered, MaterialOrderStatusPurchasing},
		{MaterialOrderStatusDelivered, MaterialOrderStatusCancelled},
		{MaterialOrderStatusCancelled, MaterialOrderStatusPaid},
		{MaterialOrderStatusCancelled, MaterialOrderStatusCancelled},
		{MaterialOrderStatusShipped, MaterialOrderStatusOrdered},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestMaterialOrderStatusTerminal(t *testing.T) {
	assert.True(t, MaterialOrderStatusDelivered.IsTerminal())
	assert.True(t, MaterialOrderStatusCancelled.IsTerminal())
	assert.False(t, MaterialOrderStatusOrdered.IsTerminal())
}

func TestParseMaterialOrderStatus(t *testing.T) {
	status, err := ParseMaterialOrderStatus("purchasing")
	assert.NoError(t, err)
	assert.Equal(t, MaterialOrderStatusPurchasing, status)

	_, err = ParseMaterialOrderStatus("limbo")
	assert.Error(t, err)
}

func TestPurchaseOrderStatusAtLeastSubmitted(t *testing.T) {
	assert.False(t, PurchaseOrderStatusDraft.AtLeastSubmitted())
	assert.True(t, PurchaseOrderStatusSubmitted.AtLeastSubmitted())
	assert.True(t, PurchaseOrderStatusDelivered.AtLeastSubmitted())
	assert.False(t, PurchaseOrderStatusCancelled.AtLeastSubmitted())
}
