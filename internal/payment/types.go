package payment

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-square/internal/common"
)

// Customer carries the buyer fields used for eligibility and prefill.
type Customer struct {
	CountryCode string `json:"countryCode" validate:"omitempty,len=2"`
	ZoneCode    string `json:"zoneCode"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// CartItem is one line of a cart under evaluation. Options is keyed by the
// option group display name.
type CartItem struct {
	ProductID string            `json:"productId" validate:"required"`
	Name      string            `json:"name"`
	Quantity  decimal.Decimal   `json:"quantity"`
	Price     decimal.Decimal   `json:"price"`
	Tax       decimal.Decimal   `json:"tax"`
	Options   map[string]string `json:"options,omitempty"`
}

// Cart is the snapshot the host passes to Options.
type Cart struct {
	Items        []CartItem      `json:"items" validate:"dive"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	CurrencyCode string          `json:"currencyCode" validate:"required,len=3"`
	Customer     Customer        `json:"customer"`
}

// OrderItem is a persisted order line. Price and Tax are per unit.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Tax       decimal.Decimal `json:"tax"`
}

// TotalRow is an order total line such as shipping or a fee. Only rows with
// Calculate set are charged on top of the items.
type TotalRow struct {
	Module    string          `json:"module"`
	Title     string          `json:"title"`
	Value     decimal.Decimal `json:"value"`
	Tax       decimal.Decimal `json:"tax"`
	Calculate bool            `json:"calculate"`
}

// Order is the host order handed to Transfer. ID is empty until saved.
type Order struct {
	ID            string          `json:"id"`
	CurrencyCode  string          `json:"currencyCode" validate:"required,len=3"`
	CurrencyValue decimal.Decimal `json:"currencyValue"`
	Language      string          `json:"language"`
	Customer      Customer        `json:"customer"`
	Items         []OrderItem     `json:"items" validate:"dive"`
	Totals        []TotalRow      `json:"totals"`
}

// OptionDescriptor describes the payment option shown at checkout. It carries
// either Cost and TaxClassID or Error.
type OptionDescriptor struct {
	ID          string           `json:"id"`
	Icon        string           `json:"icon"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Fields      string           `json:"fields"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	TaxClassID  *int             `json:"taxClassId,omitempty"`
	Confirm     string           `json:"confirm,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// OptionSet groups the options of one payment module.
type OptionSet struct {
	Title    string             `json:"title"`
	Priority int                `json:"priority"`
	Options  []OptionDescriptor `json:"options"`
}

// TransferResult instructs the host where to send the buyer, or why not.
type TransferResult struct {
	Method string `json:"method,omitempty"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`

	Kind common.Kind `json:"-"`
}

// VerifyResult is the payment decision for a returning buyer.
type VerifyResult struct {
	IsPaid        bool   `json:"isPaid"`
	PaymentTerms  string `json:"paymentTerms,omitempty"`
	OrderStatusID int    `json:"orderStatusId"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`

	Kind common.Kind `json:"-"`
}

// PaymentTermsPWO marks an order paid without delay ("paid when ordered").
const PaymentTermsPWO = "PWO"
