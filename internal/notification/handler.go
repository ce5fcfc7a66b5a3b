package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const (
	sentKeyPrefix  = "notified:order:"
	defaultSentTTL = 7 * 24 * time.Hour
)

// Mailer sends order confirmation emails.
type Mailer interface {
	SendOrderConfirmation(to string, c email.Confirmation) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	sent   store.KeyValueStore
	ttl    time.Duration
}

// NewHandler creates a new notification handler. Orders already confirmed are
// remembered in sent, so a redelivered event sends no second email; a nil
// store disables that check.
func NewHandler(mailer Mailer, sent store.KeyValueStore) *Handler {
	return &Handler{mailer: mailer, sent: sent, ttl: defaultSentTTL}
}

// HandleMessage processes a message from Kafka
func (h *Handler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	if msg.EventType != "" && msg.EventType != events.TypeOrderPlaced {
		return nil
	}

	var env events.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	// Only process OrderPlaced events
	if env.Type != events.TypeOrderPlaced {
		return nil
	}

	var e events.OrderPlaced
	if err := json.Unmarshal(env.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
		return err
	}
	return h.handleOrderPlaced(ctx, e)
}

func (h *Handler) handleOrderPlaced(ctx context.Context, e events.OrderPlaced) error {
	log.Printf("[Notifier] Processing OrderPlaced event for order %d, user %d", e.OrderID, e.UserID)

	if e.Email == "" {
		log.Printf("[Notifier] Order %d has no customer email, skipping", e.OrderID)
		return nil
	}

	key := sentKeyPrefix + strconv.FormatInt(e.OrderID, 10)
	if h.sent != nil {
		_, err := h.sent.Get(ctx, key)
		switch {
		case err == nil:
			log.Printf("[Notifier] Confirmation for order %d already sent", e.OrderID)
			return nil
		case !errors.Is(err, store.ErrNotFound):
			// better a duplicate email than none
			log.Printf("[Notifier] Could not check sent state for order %d: %v", e.OrderID, err)
		}
	}

	if err := h.mailer.SendOrderConfirmation(e.Email, toConfirmation(e)); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.Email, err)
		return fmt.Errorf("failed to send confirmation for order %d: %w", e.OrderID, err)
	}

	if h.sent != nil {
		stamp := []byte(strconv.Quote(time.Now().UTC().Format(time.RFC3339)))
		if err := h.sent.Set(ctx, key, stamp, h.ttl); err != nil {
			log.Printf("[Notifier] Failed to record confirmation for order %d: %v", e.OrderID, err)
		}
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %d", e.Email, e.OrderID)
	return nil
}

func toConfirmation(e events.OrderPlaced) email.Confirmation {
	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return email.Confirmation{
		OrderID:         e.OrderID,
		CustomerName:    e.CustomerName,
		Items:           items,
		Total:           e.Total,
		ShippingAddress: e.ShippingAddress,
		PaymentMethod:   e.PaymentMethod,
	}
}
