package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
)

func TestDecoderRegistryTypedJSON(t *testing.T) {
	reg := NewDecoderRegistry()
	RegisterJSON[payloads.OrderStatusChangedEvent](reg, enums.EventOrderStatusChanged, 1)

	require.True(t, reg.Handles(enums.EventOrderStatusChanged))
	require.False(t, reg.Handles(enums.EventOrderCreated))

	orderID := uuid.New()
	raw, err := json.Marshal(map[string]any{"orderId": orderID, "to": "shipped"})
	require.NoError(t, err)

	out, err := reg.Decode(enums.EventOrderStatusChanged, 1, raw)
	require.NoError(t, err)
	evt, ok := out.(payloads.OrderStatusChangedEvent)
	require.True(t, ok)
	require.Equal(t, orderID, evt.OrderID)
}

func TestDecoderRegistryUnknownVersion(t *testing.T) {
	reg := NewDecoderRegistry()
	RegisterJSON[payloads.OrderCreatedEvent](reg, enums.EventOrderCreated, 1)

	_, err := reg.Decode(enums.EventOrderCreated, 2, json.RawMessage(`{}`))
	require.Error(t, err)

	_, err = reg.Decode(enums.EventOrderCreated, 1, json.RawMessage(`[`))
	require.Error(t, err)
}
