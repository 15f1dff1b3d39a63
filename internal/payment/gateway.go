// Package payment implements the Square hosted-checkout payment option:
// offering it at checkout, transferring the buyer to a payment link and
// verifying the payment when the buyer returns.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-square/internal/common"
	"github.com/noah-isme/toko-square/internal/config"
	"github.com/noah-isme/toko-square/internal/eligibility"
	"github.com/noah-isme/toko-square/internal/lock"
	"github.com/noah-isme/toko-square/internal/money"
	"github.com/noah-isme/toko-square/internal/obs"
	"github.com/noah-isme/toko-square/internal/session"
	"github.com/noah-isme/toko-square/internal/square"
)

const (
	providerName = "square"
	moduleTitle  = "Square Checkout"

	msgMissingOrderID = "Missing order id"
	msgLinkFailed     = "Failed to create payment link"
	msgCanceled       = "Payment was canceled"

	transferLockTTL = 30 * time.Second
)

// Gateway wires the Square payment option to the host shop.
type Gateway struct {
	Settings   config.SquareSettings
	Client     Provider
	Orders     OrderStore
	Sessions   session.Store
	Eligible   eligibility.Filter
	Formatter  money.Formatter
	Translator Translator
	// Locks is optional. When set, concurrent transfers for one session
	// are rejected instead of creating two payment links.
	Locks SessionLocker

	StoreName string
	ReturnURL string
	CancelURL string
	Language  string

	// IdempotencyKey generates one key per transfer attempt.
	IdempotencyKey func() string
	Logger         zerolog.Logger
}

// Options returns the Square option for cart, or nil when it is not offered.
func (g *Gateway) Options(ctx context.Context, cart Cart) *OptionSet {
	ctx, span := otel.Tracer("payment.Gateway").Start(ctx, "Gateway.Options")
	defer span.End()

	items := make([]eligibility.Item, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, eligibility.Item{ProductID: it.ProductID, Name: it.Name, Options: it.Options})
	}
	decision := g.Eligible.Evaluate(ctx, eligibility.Input{
		Items:        items,
		CurrencyCode: cart.CurrencyCode,
		Customer:     eligibility.Customer{CountryCode: cart.Customer.CountryCode, ZoneCode: cart.Customer.ZoneCode},
		Language:     g.language(),
	}, g.Settings)

	result := "offered"
	defer func() {
		span.SetAttributes(attribute.String("payment.offer.result", result))
		obs.IncCounter(obs.PaymentOfferTotal, providerName, result)
	}()
	if !decision.Offered {
		result = "hidden"
		return nil
	}

	desc := OptionDescriptor{
		ID:          providerName,
		Icon:        g.Settings.Icon,
		Name:        "Square",
		Description: g.translate("square:description", "Payments processing with Square"),
	}
	if desc.Icon == "" {
		desc.Icon = "images/payment/square.jpg"
	}
	if v := decision.Violation; v != nil {
		result = "blocked"
		desc.Error = v.Message
	} else {
		cost := decimal.Zero
		taxClass := 0
		desc.Cost = &cost
		desc.TaxClassID = &taxClass
		desc.Confirm = g.translate("square:title_pay_now", "Pay Now")
	}
	return &OptionSet{
		Title:    moduleTitle,
		Priority: g.Settings.Priority,
		Options:  []OptionDescriptor{desc},
	}
}

// Transfer saves order, creates a Square payment link for it and returns the
// redirect. Failures are reported in TransferResult.Error.
func (g *Gateway) Transfer(ctx context.Context, sessionID string, order *Order) (res TransferResult) {
	ctx, span := otel.Tracer("payment.Gateway").Start(ctx, "Gateway.Transfer")
	defer span.End()

	start := time.Now()
	defer func() {
		result := "success"
		if res.Error != "" {
			result = string(res.Kind)
			g.Logger.Warn().Str("error_kind", result).Str("error", res.Error).Msg("square transfer failed")
		}
		span.SetAttributes(
			attribute.String("payment.transfer.result", result),
			attribute.Float64("payment.transfer.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		obs.IncCounter(obs.PaymentTransferTotal, providerName, result)
	}()

	link, err := g.transfer(ctx, sessionID, order)
	if err != nil {
		span.RecordError(err)
		return TransferResult{Error: err.Error(), Kind: common.KindOf(err)}
	}
	if order != nil {
		span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("square.order_id", link.OrderID))
	}
	return TransferResult{Method: "GET", Action: link.URL}
}

func (g *Gateway) transfer(ctx context.Context, sessionID string, order *Order) (square.PaymentLink, error) {
	var zero square.PaymentLink
	if order == nil {
		return zero, common.Validation("ORDER_REQUIRED", "order is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return zero, common.Validation("SESSION_REQUIRED", "session is required")
	}
	if g.Client == nil || g.Orders == nil || g.Sessions == nil {
		return zero, common.Configuration("PAYMENT_NOT_CONFIGURED", "payment gateway not configured")
	}
	if g.Locks == nil {
		return g.createLink(ctx, sessionID, order)
	}
	var link square.PaymentLink
	err := g.Locks.WithLock(ctx, "square:transfer:"+sessionID, transferLockTTL, func(ctx context.Context) error {
		var lerr error
		link, lerr = g.createLink(ctx, sessionID, order)
		return lerr
	})
	if errors.Is(err, lock.ErrLocked) {
		return zero, common.Validation("TRANSFER_IN_PROGRESS", "A payment is already being prepared for this checkout")
	}
	return link, err
}

// createLink saves the order first so it keeps its identity even when it is
// rejected locally or by Square.
func (g *Gateway) createLink(ctx context.Context, sessionID string, order *Order) (square.PaymentLink, error) {
	var zero square.PaymentLink
	if err := g.Orders.Save(ctx, order); err != nil {
		return zero, fmt.Errorf("save order: %w", err)
	}
	if order.ID == "" {
		return zero, common.Configuration("ORDER_NOT_SAVED", "order store did not assign an id")
	}
	if strings.TrimSpace(g.Settings.LocationID) == "" {
		return zero, common.Configuration("LOCATION_REQUIRED", "Square location id is not configured")
	}
	lines, err := g.lineItems(order)
	if err != nil {
		return zero, err
	}

	req := square.CreatePaymentLinkRequest{
		IdempotencyKey:   g.newIdempotencyKey(),
		CheckoutOptions:  square.CheckoutOptions{RedirectURL: g.ReturnURL},
		PrePopulatedData: square.PrePopulatedData{BuyerEmail: order.Customer.Email},
		CancelURL:        g.CancelURL,
		Order: square.OrderDraft{
			LocationID:  g.Settings.LocationID,
			ReferenceID: order.ID,
			Name:        g.StoreName,
			LineItems:   lines,
		},
	}
	link, err := g.Client.CreatePaymentLink(ctx, req)
	if err != nil {
		return zero, err
	}
	if err := g.Sessions.Put(ctx, sessionID, session.Namespace, link.OrderID); err != nil {
		return zero, fmt.Errorf("store square order id: %w", err)
	}
	return link, nil
}

// lineItems converts priced order lines and charged total rows into Square
// line items in minor units.
func (g *Gateway) lineItems(order *Order) ([]square.LineItem, error) {
	currency := strings.ToUpper(strings.TrimSpace(order.CurrencyCode))
	if currency == "" {
		return nil, common.Validation("CURRENCY_REQUIRED", "order currency is required")
	}
	amount := func(value, tax decimal.Decimal) square.Money {
		return square.Money{
			Amount:   money.ToMinorUnits(g.Formatter, value.Add(tax), currency, order.CurrencyValue),
			Currency: currency,
		}
	}

	lines := make([]square.LineItem, 0, len(order.Items)+len(order.Totals))
	for _, it := range order.Items {
		if !it.Price.IsPositive() {
			continue
		}
		lines = append(lines, square.LineItem{
			Name:           it.Name,
			Quantity:       it.Quantity.String(),
			BasePriceMoney: amount(it.Price, it.Tax),
		})
	}
	for _, row := range order.Totals {
		if !row.Calculate {
			continue
		}
		lines = append(lines, square.LineItem{
			Name:           row.Title,
			Quantity:       "1",
			BasePriceMoney: amount(row.Value, row.Tax),
		})
	}
	if len(lines) == 0 {
		return nil, common.Validation("NO_PAYABLE_ITEMS", "order has no payable items")
	}
	return lines, nil
}

// Verify checks the Square order stored for sessionID and reports whether it
// has been paid. The session slot is cleared only after a paid result.
func (g *Gateway) Verify(ctx context.Context, sessionID string, order *Order) (res VerifyResult) {
	ctx, span := otel.Tracer("payment.Gateway").Start(ctx, "Gateway.Verify")
	defer span.End()

	defer func() {
		result := "paid"
		if !res.IsPaid {
			result = string(res.Kind)
		}
		span.SetAttributes(attribute.String("payment.verify.result", result))
		obs.IncCounter(obs.PaymentVerifyTotal, providerName, result)
	}()

	fail := func(err error) VerifyResult {
		span.RecordError(err)
		g.Logger.Warn().Err(err).Str("error_kind", string(common.KindOf(err))).Msg("square verify failed")
		return VerifyResult{Error: err.Error(), Kind: common.KindOf(err)}
	}

	if g.Sessions == nil || g.Client == nil {
		return fail(common.Configuration("PAYMENT_NOT_CONFIGURED", "payment gateway not configured"))
	}
	squareOrderID, err := g.Sessions.Get(ctx, sessionID, session.Namespace)
	if errors.Is(err, session.ErrNotFound) || (err == nil && strings.TrimSpace(squareOrderID) == "") {
		return fail(common.Configuration("MISSING_ORDER_ID", msgMissingOrderID))
	}
	if err != nil {
		return fail(fmt.Errorf("load square order id: %w", err))
	}
	span.SetAttributes(attribute.String("square.order_id", squareOrderID))

	sq, err := g.Client.RetrieveOrder(ctx, squareOrderID)
	if err != nil {
		return fail(err)
	}
	if sq.ID == "" {
		return fail(common.Protocol(msgLinkFailed, nil))
	}
	if order != nil && order.ID != "" && sq.ReferenceID != "" && sq.ReferenceID != order.ID {
		return fail(common.Validation("ORDER_MISMATCH", "Payment does not belong to this order"))
	}
	switch {
	case sq.State == square.OrderStateCanceled:
		return fail(common.Declined("PAYMENT_CANCELED", msgCanceled))
	case !sq.Paid():
		return fail(common.Declined("PAYMENT_INCOMPLETE", fmt.Sprintf("Payment has not been completed (state %s)", sq.State)))
	}

	if err := g.Sessions.Delete(ctx, sessionID, session.Namespace); err != nil {
		g.Logger.Error().Err(err).Str("square_order_id", sq.ID).Msg("clear square session slot")
	}
	return VerifyResult{
		IsPaid:        true,
		PaymentTerms:  PaymentTermsPWO,
		OrderStatusID: g.Settings.OrderStatusID,
		TransactionID: sq.ID,
	}
}

func (g *Gateway) newIdempotencyKey() string {
	if g.IdempotencyKey != nil {
		return g.IdempotencyKey()
	}
	return uuid.NewString()
}

func (g *Gateway) translate(key, fallback string) string {
	if g.Translator == nil {
		return fallback
	}
	return g.Translator.Translate(key, fallback)
}

func (g *Gateway) language() string {
	if g.Language != "" {
		return g.Language
	}
	return "en"
}
