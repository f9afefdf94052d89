package repos

import (
	"context"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"

	"github.com/jmoiron/sqlx"
)

type PriceMirrorRepo struct{ db *sqlx.DB }

func NewPriceMirrorRepo(db *sqlx.DB) *PriceMirrorRepo { return &PriceMirrorRepo{db: db} }

// Insert records the mapping once; a second insert for the same key is a Conflict.
func (r *PriceMirrorRepo) Insert(ctx context.Context, m domain.PriceMirror) error {
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO products(product_key, item_id, product_id, price_id)
	  VALUES(?, ?, ?, ?)
	`, m.ProductKey, m.ItemID, m.ProductID, m.PriceID)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, err, "price mirror already exists")
	}
	return err
}

func (r *PriceMirrorRepo) ByProductKey(ctx context.Context, key string) (domain.PriceMirror, error) {
	var m domain.PriceMirror
	err := r.db.GetContext(ctx, &m, `
	  SELECT product_key, item_id, product_id, price_id, COALESCE(created_at,'') AS created_at
	  FROM products WHERE product_key = ?
	`, key)
	if err != nil {
		return domain.PriceMirror{}, notFound(err, "price mirror")
	}
	return m, nil
}

// ByProductKeys returns the mirrors found for keys; missing keys are simply absent.
func (r *PriceMirrorRepo) ByProductKeys(ctx context.Context, keys []string) (map[string]domain.PriceMirror, error) {
	out := map[string]domain.PriceMirror{}
	if len(keys) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
	  SELECT product_key, item_id, product_id, price_id, COALESCE(created_at,'') AS created_at
	  FROM products WHERE product_key IN (?)
	`, keys)
	if err != nil {
		return nil, err
	}
	var rows []domain.PriceMirror
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ProductKey] = m
	}
	return out, nil
}
