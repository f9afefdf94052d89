package repos

import (
	"context"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"

	"github.com/jmoiron/sqlx"
)

type CatalogRepo struct{ db *sqlx.DB }

func NewCatalogRepo(db *sqlx.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const catalogSelect = `
  SELECT c.id, c.name, c.img_url, c.quantity, c.description, c.price,
         COALESCE(c.seller_id,0) AS seller_id,
         EXISTS(SELECT 1 FROM products p WHERE p.item_id = c.id) AS purchasable
  FROM catalog c`

func (r *CatalogRepo) List(ctx context.Context) ([]domain.CatalogItem, error) {
	out := []domain.CatalogItem{}
	err := r.db.SelectContext(ctx, &out, catalogSelect+` ORDER BY c.id`)
	return out, err
}

func (r *CatalogRepo) Get(ctx context.Context, id int64) (domain.CatalogItem, error) {
	return r.get(ctx, r.db, id)
}

func (r *CatalogRepo) get(ctx context.Context, q sqlx.QueryerContext, id int64) (domain.CatalogItem, error) {
	var it domain.CatalogItem
	if err := sqlx.GetContext(ctx, q, &it, catalogSelect+` WHERE c.id = ?`, id); err != nil {
		return domain.CatalogItem{}, notFound(err, "catalog item")
	}
	return it, nil
}

// InsertTx adds an item inside tx and returns the stored row.
func (r *CatalogRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, it domain.CatalogItem) (domain.CatalogItem, error) {
	res, err := tx.ExecContext(ctx, `
	  INSERT INTO catalog(name, img_url, quantity, description, price, seller_id)
	  VALUES(?, ?, ?, ?, ?, ?)
	`, it.Name, it.ImageURL, it.Quantity, it.Description, it.Price.StringFixed(2), it.SellerID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.CatalogItem{}, apperr.Wrap(apperr.CodeConflict, err, "an item with this name already exists")
		}
		return domain.CatalogItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return r.get(ctx, tx, id)
}
