package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EventType
		expected string
	}{
		{"created", EventTypeCreated, "created"},
		{"updated", EventTypeUpdated, "updated"},
		{"deleted", EventTypeDeleted, "deleted"},
		{"changed", EventTypeChanged, "changed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestEntityType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EntityType
		expected string
	}{
		{"transaction", EntityTypeTransaction, "transaction"},
		{"allocation", EntityTypeAllocation, "allocation"},
		{"account", EntityTypeAccount, "account"},
		{"reconciliation", EntityTypeReconciliation, "reconciliation"},
		{"monthly_state", EntityTypeMonthlyState, "monthly_state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"id":           "txn-1",
		"amount_minor": float64(-1999),
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
	after := time.Now()

	assert.Equal(t, "transaction.created", evt.Type)
	assert.Equal(t, EntityTypeTransaction, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_JSON_Serialization(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"id":           float64(1),
		"amount_minor": float64(-1999),
	}

	evt := Event{
		Type:      "transaction.created",
		Entity:    EntityTypeTransaction,
		Payload:   payload,
		Timestamp: fixedTime,
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Entity, decoded.Entity)
	assert.Equal(t, fixedTime.UTC(), decoded.Timestamp.UTC())

	decodedPayload, ok := decoded.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), decodedPayload["id"])
	assert.Equal(t, float64(-1999), decodedPayload["amount_minor"])
}

func TestEvent_ToJSON(t *testing.T) {
	payload := map[string]interface{}{"id": "alloc-1"}

	evt := NewEvent(EventTypeUpdated, EntityTypeAllocation, payload)

	data, err := evt.ToJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	var decoded map[string]interface{}
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "allocation.updated", decoded["type"])
	assert.Equal(t, "allocation", decoded["entity"])
	assert.NotNil(t, decoded["payload"])
	assert.NotNil(t, decoded["timestamp"])
}

func TestTransactionEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"id": "txn-1"}

	t.Run("TransactionCreated", func(t *testing.T) {
		evt := TransactionCreated(payload)
		assert.Equal(t, "transaction.created", evt.Type)
		assert.Equal(t, EntityTypeTransaction, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})

	t.Run("TransactionUpdated", func(t *testing.T) {
		evt := TransactionUpdated(payload)
		assert.Equal(t, "transaction.updated", evt.Type)
		assert.Equal(t, EntityTypeTransaction, evt.Entity)
	})

	t.Run("TransactionDeleted", func(t *testing.T) {
		evt := TransactionDeleted(payload)
		assert.Equal(t, "transaction.deleted", evt.Type)
		assert.Equal(t, EntityTypeTransaction, evt.Entity)
	})
}

func TestAllocationEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"id": "alloc-1"}

	t.Run("AllocationCreated", func(t *testing.T) {
		evt := AllocationCreated(payload)
		assert.Equal(t, "allocation.created", evt.Type)
		assert.Equal(t, EntityTypeAllocation, evt.Entity)
	})

	t.Run("AllocationUpdated", func(t *testing.T) {
		evt := AllocationUpdated(payload)
		assert.Equal(t, "allocation.updated", evt.Type)
	})

	t.Run("AllocationDeleted", func(t *testing.T) {
		evt := AllocationDeleted(payload)
		assert.Equal(t, "allocation.deleted", evt.Type)
	})
}

func TestAccountBalanceChanged(t *testing.T) {
	evt := AccountBalanceChanged(map[string]interface{}{"id": "acct-1"})
	assert.Equal(t, "account.changed", evt.Type)
	assert.Equal(t, EntityTypeAccount, evt.Entity)
}

func TestReconciliationCommitted(t *testing.T) {
	evt := ReconciliationCommitted(map[string]interface{}{"id": "recon-1"})
	assert.Equal(t, "reconciliation.created", evt.Type)
	assert.Equal(t, EntityTypeReconciliation, evt.Entity)
}
