package services

import (
	"context"
	"strings"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/repos"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type NewItem struct {
	Name        string
	ImageURL    string
	Quantity    int
	Description string
	Price       decimal.Decimal
}

type CatalogService struct {
	DB        *sqlx.DB
	Items     *repos.CatalogRepo
	Jobs      *repos.PublishJobRepo
	Publisher *Publisher
}

func NewCatalogService(db *sqlx.DB, items *repos.CatalogRepo, jobs *repos.PublishJobRepo, pub *Publisher) *CatalogService {
	return &CatalogService{DB: db, Items: items, Jobs: jobs, Publisher: pub}
}

func (s *CatalogService) List(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.Items.List(ctx)
}

func (s *CatalogService) Get(ctx context.Context, id int64) (domain.CatalogItem, error) {
	return s.Items.Get(ctx, id)
}

// Create stores the item together with its publish job, then tries to publish inline.
// A failed inline publish is left to the background publisher; the item is still returned.
func (s *CatalogService) Create(ctx context.Context, who domain.Identity, in NewItem) (domain.CatalogItem, error) {
	if err := requireAdmin(who); err != nil {
		return domain.CatalogItem{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.CatalogItem{}, apperr.New(apperr.CodeValidation, "name is required")
	}
	if !in.Price.IsPositive() || in.Price.Round(2).Shift(2).IntPart() <= 0 {
		return domain.CatalogItem{}, apperr.New(apperr.CodeValidation, "price must be positive")
	}
	if in.Quantity < 0 {
		return domain.CatalogItem{}, apperr.New(apperr.CodeValidation, "quantity cannot be negative")
	}

	var item domain.CatalogItem
	err := repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.Items.InsertTx(ctx, tx, domain.CatalogItem{
			Name:        in.Name,
			ImageURL:    strings.TrimSpace(in.ImageURL),
			Quantity:    in.Quantity,
			Description: in.Description,
			Price:       in.Price,
			SellerID:    who.UserID,
		})
		if err != nil {
			return err
		}
		_, err = s.Jobs.EnqueueTx(ctx, tx, item.ID, s.Publisher.now())
		return err
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}

	if err := s.Publisher.PublishNow(ctx, item.ID); err != nil {
		l := applog.Background("catalog.create")
		l.Warn().Err(err).Int64("item_id", item.ID).Msg("inline publish failed, queued for retry")
		return item, nil
	}
	return s.Items.Get(ctx, item.ID)
}

// Republish forces a publish attempt for an existing item.
func (s *CatalogService) Republish(ctx context.Context, who domain.Identity, itemID int64) (domain.CatalogItem, error) {
	if err := requireAdmin(who); err != nil {
		return domain.CatalogItem{}, err
	}
	if _, err := s.Items.Get(ctx, itemID); err != nil {
		return domain.CatalogItem{}, err
	}
	if err := s.Publisher.PublishNow(ctx, itemID); err != nil {
		return domain.CatalogItem{}, err
	}
	return s.Items.Get(ctx, itemID)
}
