package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

const ProductKeyPrefix = "catalogproduct"

type CatalogItem struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	ImageURL    string          `db:"img_url"`
	Quantity    int             `db:"quantity"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	SellerID    int64           `db:"seller_id"`
	Purchasable bool            `db:"purchasable"`
}

// ProductKey is the deterministic external product identifier of the item.
func ProductKey(itemID int64) string {
	return ProductKeyPrefix + strconv.FormatInt(itemID, 10)
}

// PriceCents is the price in minor currency units.
func (it CatalogItem) PriceCents() int64 {
	return it.Price.Round(2).Shift(2).IntPart()
}

type CartLine struct {
	ID       int64 `db:"id"`
	BuyerID  int64 `db:"buyer_id"`
	ItemID   int64 `db:"item_id"`
	Quantity int   `db:"quantity"`
}

type PriceMirror struct {
	ProductKey string `db:"product_key"`
	ItemID     int64  `db:"item_id"`
	ProductID  string `db:"product_id"`
	PriceID    string `db:"price_id"`
	CreatedAt  string `db:"created_at"`
}

type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderPaid     OrderStatus = "PAID"
	OrderCanceled OrderStatus = "CANCELED"
)

type Order struct {
	ID        int64           `db:"id"`
	BuyerID   int64           `db:"buyer_id"`
	SessionID string          `db:"session_id"`
	Status    OrderStatus     `db:"status"`
	Total     decimal.Decimal `db:"total"`
	CreatedAt string          `db:"created_at"`
}

type OrderLine struct {
	OrderID    int64           `db:"order_id"`
	Position   int             `db:"position"`
	CartLineID int64           `db:"cart_line_id"`
	ItemID     int64           `db:"item_id"`
	PriceID    string          `db:"price_id"`
	Quantity   int             `db:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price"`
}
