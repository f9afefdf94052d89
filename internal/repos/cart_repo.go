package repos

import (
	"context"
	"database/sql"
	"fmt"

	"shopfront/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

// Insert always creates a new row, even when the buyer already has a line for the item.
func (r *CartRepo) Insert(ctx context.Context, buyerID, itemID int64, qty int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cart(buyer_id, item_id, quantity, created_at)
		VALUES(?, ?, ?, CURRENT_TIMESTAMP)
	`, buyerID, itemID, qty)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *CartRepo) Get(ctx context.Context, lineID int64) (domain.CartLine, error) {
	var l domain.CartLine
	err := r.db.GetContext(ctx, &l, `SELECT id, buyer_id, item_id, quantity FROM cart WHERE id = ?`, lineID)
	if err != nil {
		return domain.CartLine{}, notFound(err, "cart line")
	}
	return l, nil
}

func (r *CartRepo) UpdateQty(ctx context.Context, lineID int64, qty int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cart SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, qty, lineID)
	if err != nil {
		return err
	}
	return requireOneRow(res, "cart line")
}

func (r *CartRepo) Delete(ctx context.Context, lineID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart WHERE id = ?`, lineID)
	if err != nil {
		return err
	}
	return requireOneRow(res, "cart line")
}

// ListForBuyer returns the buyer's lines by ascending id.
func (r *CartRepo) ListForBuyer(ctx context.Context, buyerID int64) ([]domain.CartLine, error) {
	out := []domain.CartLine{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, buyer_id, item_id, quantity FROM cart
	  WHERE buyer_id = ?
	  ORDER BY id
	`, buyerID)
	return out, err
}

type CartLineRow struct {
	ID       int64           `db:"id"`
	ItemID   int64           `db:"item_id"`
	Name     string          `db:"name"`
	ImageURL string          `db:"img_url"`
	Quantity int             `db:"quantity"`
	Price    decimal.Decimal `db:"price"`
}

func (l CartLineRow) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// View joins the buyer's lines with their catalog items.
func (r *CartRepo) View(ctx context.Context, buyerID int64) ([]CartLineRow, decimal.Decimal, error) {
	rows := []CartLineRow{}
	if err := r.db.SelectContext(ctx, &rows, `
	  SELECT ci.id, ci.item_id, c.name, c.img_url, ci.quantity, c.price
	  FROM cart ci JOIN catalog c ON c.id = ci.item_id
	  WHERE ci.buyer_id = ?
	  ORDER BY ci.id
	`, buyerID); err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, it := range rows {
		total = total.Add(it.Subtotal())
	}
	return rows, total, nil
}

// SettleLinesTx takes the paid quantities off the buyer's submitted lines. A line raised after
// submission keeps the difference; a line at or below its paid quantity is removed.
func (r *CartRepo) SettleLinesTx(ctx context.Context, tx *sqlx.Tx, buyerID int64, paid []domain.OrderLine) error {
	for _, l := range paid {
		if _, err := tx.ExecContext(ctx, `
		  DELETE FROM cart WHERE buyer_id = ? AND id = ? AND quantity <= ?
		`, buyerID, l.CartLineID, l.Quantity); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
		  UPDATE cart SET quantity = quantity - ? WHERE buyer_id = ? AND id = ? AND quantity > ?
		`, l.Quantity, buyerID, l.CartLineID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func requireOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, what)
	}
	if n > 1 {
		return fmt.Errorf("%s: %d rows affected", what, n)
	}
	return nil
}
