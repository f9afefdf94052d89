package repos

import (
	"context"

	"shopfront/internal/domain"

	"github.com/jmoiron/sqlx"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = `id, buyer_id, session_id, status, total, COALESCE(created_at,'') AS created_at`

// Create inserts a PENDING order header with its line snapshot.
func (r *OrderRepo) Create(ctx context.Context, o domain.Order, lines []domain.OrderLine) (int64, error) {
	var id int64
	err := WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
		  INSERT INTO orders(buyer_id, session_id, status, total, created_at)
		  VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, o.BuyerID, o.SessionID, string(domain.OrderPending), o.Total.StringFixed(2))
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		for i, l := range lines {
			if _, err := tx.ExecContext(ctx, `
			  INSERT INTO order_lines(order_id, position, cart_line_id, item_id, price_id, quantity, unit_price)
			  VALUES(?, ?, ?, ?, ?, ?, ?)
			`, id, i, l.CartLineID, l.ItemID, l.PriceID, l.Quantity, l.UnitPrice.StringFixed(2)); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *OrderRepo) BySession(ctx context.Context, sessionID string) (domain.Order, error) {
	var o domain.Order
	if err := r.db.GetContext(ctx, &o, `SELECT `+orderCols+` FROM orders WHERE session_id = ?`, sessionID); err != nil {
		return domain.Order{}, notFound(err, "order")
	}
	return o, nil
}

func (r *OrderRepo) Lines(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	out := []domain.OrderLine{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT order_id, position, cart_line_id, item_id, price_id, quantity, unit_price
	  FROM order_lines WHERE order_id = ?
	  ORDER BY position
	`, orderID)
	return out, err
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	out := []domain.Order{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+orderCols+` FROM orders WHERE buyer_id = ? ORDER BY id DESC`, buyerID)
	return out, err
}

// MarkPaid flips a PENDING order to PAID and settles the cart lines it was built from.
// It reports false when the order was already settled.
func (r *OrderRepo) MarkPaid(ctx context.Context, carts *CartRepo, o domain.Order, paid []domain.OrderLine) (bool, error) {
	changed := false
	err := WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
		  UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND status = ?
		`, string(domain.OrderPaid), o.ID, string(domain.OrderPending))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		changed = true
		return carts.SettleLinesTx(ctx, tx, o.BuyerID, paid)
	})
	return changed, err
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
	return err
}
