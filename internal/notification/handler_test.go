package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
)

type mockMailer struct {
	sent []sentConfirmation
	err  error
}

type sentConfirmation struct {
	to string
	c  email.Confirmation
}

func (m *mockMailer) SendOrderConfirmation(to string, c email.Confirmation) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentConfirmation{to: to, c: c})
	return nil
}

func orderPlaced() events.OrderPlaced {
	return events.OrderPlaced{
		OrderID:      55,
		UserID:       7,
		Email:        "ann@example.com",
		CustomerName: "Ann Lee",
		Total:        2599,
		Items: []events.OrderPlacedItem{
			{ProductID: 1, Name: "Mug", Quantity: 2, Price: 1250},
		},
		ShippingAddress: "1 Main St, Springfield 12345",
		PaymentMethod:   "paypal",
		PlacedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func message(t *testing.T, e events.Event) kafka.Message {
	t.Helper()
	env, err := events.NewEnvelope(e, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(e.Key()), Value: data, EventType: e.Type()}
}

// ============================================
// OrderPlaced
// ============================================

func TestHandler_SendsConfirmation(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, mocks.NewMockKeyValueStore())

	require.NoError(t, h.HandleMessage(context.Background(), message(t, orderPlaced())))

	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, "ann@example.com", sent.to)
	assert.Equal(t, int64(55), sent.c.OrderID)
	assert.Equal(t, "Ann Lee", sent.c.CustomerName)
	require.Len(t, sent.c.Items, 1)
	assert.Equal(t, "Mug", sent.c.Items[0].Name)
	assert.Equal(t, 2, sent.c.Items[0].Quantity)
	assert.EqualValues(t, 2599, sent.c.Total)
}

func TestHandler_RedeliveryIsIgnored(t *testing.T) {
	mailer := &mockMailer{}
	kv := mocks.NewMockKeyValueStore()
	h := NewHandler(mailer, kv)

	msg := message(t, orderPlaced())
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NoError(t, h.HandleMessage(context.Background(), msg))

	assert.Len(t, mailer.sent, 1)
	require.Len(t, kv.SetCalls, 1)
	assert.Equal(t, "notified:order:55", kv.SetCalls[0].Key)
}

func TestHandler_MailFailureIsNotRecorded(t *testing.T) {
	mailer := &mockMailer{err: errors.New("smtp down")}
	kv := mocks.NewMockKeyValueStore()
	h := NewHandler(mailer, kv)

	err := h.HandleMessage(context.Background(), message(t, orderPlaced()))
	assert.ErrorContains(t, err, "smtp down")
	assert.Empty(t, kv.SetCalls)
}

func TestHandler_StoreFailureStillSends(t *testing.T) {
	mailer := &mockMailer{}
	kv := mocks.NewMockKeyValueStore()
	kv.GetErr = errors.New("db unavailable")
	h := NewHandler(mailer, kv)

	require.NoError(t, h.HandleMessage(context.Background(), message(t, orderPlaced())))
	assert.Len(t, mailer.sent, 1)
}

func TestHandler_NoStore(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, nil)

	msg := message(t, orderPlaced())
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	assert.Len(t, mailer.sent, 2)
}

func TestHandler_SkipsOrderWithoutEmail(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, nil)

	e := orderPlaced()
	e.Email = ""
	require.NoError(t, h.HandleMessage(context.Background(), message(t, e)))
	assert.Empty(t, mailer.sent)
}

// ============================================
// Other messages
// ============================================

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, nil)

	msg := message(t, events.CartChanged{OwnerKey: "user:7", ItemCount: 1})
	require.NoError(t, h.HandleMessage(context.Background(), msg))

	// without the type header the envelope type decides
	msg.EventType = ""
	require.NoError(t, h.HandleMessage(context.Background(), msg))

	assert.Empty(t, mailer.sent)
}

func TestHandler_MalformedPayload(t *testing.T) {
	h := NewHandler(&mockMailer{}, nil)

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json"), EventType: events.TypeOrderPlaced})
	assert.Error(t, err)
}
