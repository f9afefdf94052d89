package payments

import "context"

const (
	CurrencyUSD = "usd"
	ModePayment = "payment"
)

type Product struct {
	ID       string
	Name     string
	ImageURL string
}

type PriceRequest struct {
	ProductID  string
	UnitAmount int64
	Currency   string
	// IdempotencyKey makes a retried create return the first price instead of a second one.
	IdempotencyKey string
}

type LineItem struct {
	PriceID  string
	Quantity int64
}

type SessionRequest struct {
	LineItems  []LineItem
	Mode       string
	SuccessURL string
	CancelURL  string
	// ClientReference ties the hosted session back to the buyer.
	ClientReference string
}

type Session struct {
	ID  string
	URL string
	// Paid is true once the processor reports the payment as collected.
	Paid    bool
	Expired bool
}

// Processor is the external payment processor boundary.
type Processor interface {
	CreateProduct(ctx context.Context, p Product) (string, error)
	CreatePrice(ctx context.Context, req PriceRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	GetCheckoutSession(ctx context.Context, id string) (Session, error)
}
