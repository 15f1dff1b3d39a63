package payment

import (
	"context"
	"time"

	"github.com/noah-isme/toko-square/internal/square"
)

// Provider abstracts the hosted-checkout calls made against Square.
// *square.Client satisfies it.
type Provider interface {
	CreatePaymentLink(ctx context.Context, req square.CreatePaymentLinkRequest) (square.PaymentLink, error)
	RetrieveOrder(ctx context.Context, orderID string) (square.Order, error)
}

// OrderStore persists an order and assigns its ID when empty.
type OrderStore interface {
	Save(ctx context.Context, order *Order) error
}

// SessionLocker serialises transfers of one checkout session.
// *lock.Locker satisfies it.
type SessionLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Translator returns the localized text for key, or fallback.
type Translator interface {
	Translate(key, fallback string) string
}

// FallbackTranslator serves Messages and otherwise the fallback text.
type FallbackTranslator struct {
	Messages map[string]string
}

func (t FallbackTranslator) Translate(key, fallback string) string {
	if msg, ok := t.Messages[key]; ok && msg != "" {
		return msg
	}
	return fallback
}
