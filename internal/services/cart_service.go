package services

import (
	"context"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"
	"shopfront/internal/repos"

	"github.com/shopspring/decimal"
)

type CartService struct {
	Carts *repos.CartRepo
	Items *repos.CatalogRepo
}

func NewCartService(carts *repos.CartRepo, items *repos.CatalogRepo) *CartService {
	return &CartService{Carts: carts, Items: items}
}

// AddToCart appends a new line; repeated adds of the same item stay separate lines.
func (s *CartService) AddToCart(ctx context.Context, who domain.Identity, itemID int64, qty int) (int64, error) {
	if err := requireBuyer(who); err != nil {
		return 0, err
	}
	if qty < 1 {
		return 0, apperr.New(apperr.CodeValidation, "quantity must be at least 1")
	}
	if _, err := s.Items.Get(ctx, itemID); err != nil {
		return 0, err
	}
	return s.Carts.Insert(ctx, who.UserID, itemID, qty)
}

func (s *CartService) EditQuantity(ctx context.Context, who domain.Identity, lineID int64, qty int) error {
	if err := requireBuyer(who); err != nil {
		return err
	}
	if qty < 1 {
		return apperr.New(apperr.CodeValidation, "quantity must be at least 1")
	}
	line, err := s.Carts.Get(ctx, lineID)
	if err != nil {
		return err
	}
	if err := requireLineOwner(who, line); err != nil {
		return err
	}
	return s.Carts.UpdateQty(ctx, lineID, qty)
}

func (s *CartService) RemoveLine(ctx context.Context, who domain.Identity, lineID int64) error {
	if err := requireBuyer(who); err != nil {
		return err
	}
	line, err := s.Carts.Get(ctx, lineID)
	if err != nil {
		return err
	}
	if err := requireLineOwner(who, line); err != nil {
		return err
	}
	return s.Carts.Delete(ctx, lineID)
}

func (s *CartService) ListForBuyer(ctx context.Context, who domain.Identity) ([]domain.CartLine, error) {
	if err := requireBuyer(who); err != nil {
		return nil, err
	}
	return s.Carts.ListForBuyer(ctx, who.UserID)
}

type CartView struct {
	Items []repos.CartLineRow
	Total decimal.Decimal
}

func (s *CartService) View(ctx context.Context, who domain.Identity) (CartView, error) {
	if err := requireBuyer(who); err != nil {
		return CartView{}, err
	}
	items, total, err := s.Carts.View(ctx, who.UserID)
	if err != nil {
		return CartView{}, err
	}
	return CartView{Items: items, Total: total}, nil
}
