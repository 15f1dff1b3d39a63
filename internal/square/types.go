package square

// Money is an amount in the currency's smallest unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// LineItem is one priced row of a Square order.
type LineItem struct {
	Name           string `json:"name"`
	Quantity       string `json:"quantity"`
	BasePriceMoney Money  `json:"base_price_money"`
}

// OrderDraft is the order embedded in a payment link request.
type OrderDraft struct {
	LocationID  string     `json:"location_id"`
	ReferenceID string     `json:"reference_id"`
	Name        string     `json:"name,omitempty"`
	LineItems   []LineItem `json:"line_items"`
}

// CheckoutOptions controls the hosted checkout page.
type CheckoutOptions struct {
	RedirectURL string `json:"redirect_url"`
}

// PrePopulatedData fills buyer fields on the hosted checkout page.
type PrePopulatedData struct {
	BuyerEmail string `json:"buyer_email,omitempty"`
}

// CreatePaymentLinkRequest is the body of POST /online-checkout/payment-links.
type CreatePaymentLinkRequest struct {
	IdempotencyKey   string           `json:"idempotency_key"`
	CheckoutOptions  CheckoutOptions  `json:"checkout_options"`
	PrePopulatedData PrePopulatedData `json:"pre_populated_data"`
	CancelURL        string           `json:"cancel_url,omitempty"`
	Order            OrderDraft       `json:"order"`
}

// PaymentLink is the hosted checkout created by Square.
type PaymentLink struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	OrderID string `json:"order_id"`
	URL     string `json:"url"`
}

// CreatePaymentLinkResponse wraps the created link.
type CreatePaymentLinkResponse struct {
	PaymentLink PaymentLink `json:"payment_link"`
}

// Order states reported by Square.
const (
	OrderStateOpen      = "OPEN"
	OrderStateCompleted = "COMPLETED"
	OrderStateCanceled  = "CANCELED"
	OrderStateDraft     = "DRAFT"
)

// Tender is a payment applied to an order.
type Tender struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	AmountMoney Money  `json:"amount_money"`
	PaymentID   string `json:"payment_id,omitempty"`
}

// Order is the subset of a Square order the verifier reads.
type Order struct {
	ID                string   `json:"id"`
	LocationID        string   `json:"location_id"`
	ReferenceID       string   `json:"reference_id"`
	State             string   `json:"state"`
	Tenders           []Tender `json:"tenders,omitempty"`
	TotalMoney        *Money   `json:"total_money,omitempty"`
	NetAmountDueMoney *Money   `json:"net_amount_due_money,omitempty"`
}

// Paid reports whether the order counts as paid: completed, or open with at
// least one tender captured.
func (o Order) Paid() bool {
	switch o.State {
	case OrderStateCompleted:
		return true
	case OrderStateOpen:
		return len(o.Tenders) > 0
	default:
		return false
	}
}

// RetrieveOrderResponse wraps GET /orders/{id}.
type RetrieveOrderResponse struct {
	Order Order `json:"order"`
}

// apiError covers both error shapes Square and its proxies return.
type apiError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Errors []struct {
		Category string `json:"category"`
		Code     string `json:"code"`
		Detail   string `json:"detail"`
		Field    string `json:"field"`
	} `json:"errors"`
}
