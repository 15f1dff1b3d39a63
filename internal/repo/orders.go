package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-square/internal/payment"
)

const (
	insertOrderSQL = `INSERT INTO orders (currency_code, currency_value, language_code, customer_email, customer_country, customer_zone)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	updateOrderSQL = `UPDATE orders
SET currency_code = $2, currency_value = $3, language_code = $4,
    customer_email = $5, customer_country = $6, customer_zone = $7, updated_at = now()
WHERE id = $1`
	deleteOrderItemsSQL  = `DELETE FROM order_items WHERE order_id = $1`
	deleteOrderTotalsSQL = `DELETE FROM order_totals WHERE order_id = $1`
	insertOrderItemSQL   = `INSERT INTO order_items (order_id, product_id, name, quantity, price, tax)
VALUES ($1, $2, $3, $4, $5, $6)`
	insertOrderTotalSQL = `INSERT INTO order_totals (order_id, module, title, value, tax, calculate, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// Orders persists payment.Order snapshots. It implements payment.OrderStore.
type Orders struct {
	DB TxBeginner
}

// Save inserts the order when it has no ID, otherwise replaces the stored
// copy. Lines and totals are rewritten in the same transaction.
func (o Orders) Save(ctx context.Context, order *payment.Order) error {
	if o.DB == nil {
		return fmt.Errorf("orders: database not configured")
	}
	if order == nil {
		return fmt.Errorf("orders: nil order")
	}
	return pgx.BeginFunc(ctx, o.DB, func(tx pgx.Tx) error {
		id, err := o.upsert(ctx, tx, order)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteOrderItemsSQL, id); err != nil {
			return fmt.Errorf("clear order items: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteOrderTotalsSQL, id); err != nil {
			return fmt.Errorf("clear order totals: %w", err)
		}
		for _, it := range order.Items {
			if _, err := tx.Exec(ctx, insertOrderItemSQL, id, it.ProductID, it.Name, it.Quantity, it.Price, it.Tax); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		for i, row := range order.Totals {
			if _, err := tx.Exec(ctx, insertOrderTotalSQL, id, row.Module, row.Title, row.Value, row.Tax, row.Calculate, i); err != nil {
				return fmt.Errorf("insert order total: %w", err)
			}
		}
		order.ID = strconv.FormatInt(id, 10)
		return nil
	})
}

func (o Orders) upsert(ctx context.Context, db DBTX, order *payment.Order) (int64, error) {
	currencyValue := order.CurrencyValue
	if currencyValue.IsZero() {
		currencyValue = decimal.NewFromInt(1)
	}
	lang := order.Language
	if lang == "" {
		lang = "en"
	}
	c := order.Customer
	currency := strings.ToUpper(strings.TrimSpace(order.CurrencyCode))

	if strings.TrimSpace(order.ID) == "" {
		var id int64
		err := db.QueryRow(ctx, insertOrderSQL, currency, currencyValue, lang, c.Email, c.CountryCode, c.ZoneCode).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert order: %w", err)
		}
		return id, nil
	}

	id, err := parseID(order.ID)
	if err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, updateOrderSQL, id, currency, currencyValue, lang, c.Email, c.CountryCode, c.ZoneCode)
	if err != nil {
		return 0, fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("order %s: %w", order.ID, ErrNotFound)
	}
	return id, nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, value)
	}
	return id, nil
}
