package services

import (
	"context"
	"strconv"
	"time"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"
	"shopfront/internal/metrics"
	"shopfront/internal/payments"
	"shopfront/internal/repos"
)

// MirrorService keeps the local item -> external price mapping.
type MirrorService struct {
	Mirrors *repos.PriceMirrorRepo
	Proc    payments.Processor
	Metrics *metrics.Shop
}

func NewMirrorService(mirrors *repos.PriceMirrorRepo, proc payments.Processor, m *metrics.Shop) *MirrorService {
	return &MirrorService{Mirrors: mirrors, Proc: proc, Metrics: m}
}

// Publish registers item with the processor and records the resulting price id.
// Publishing an item that already has a mirror returns the stored one.
func (s *MirrorService) Publish(ctx context.Context, item domain.CatalogItem) (domain.PriceMirror, error) {
	key := domain.ProductKey(item.ID)
	existing, err := s.Mirrors.ByProductKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !apperr.Is(err, apperr.CodeNotFound) {
		return domain.PriceMirror{}, err
	}
	cents := item.PriceCents()
	if cents <= 0 {
		return domain.PriceMirror{}, apperr.New(apperr.CodeValidation, "price must be positive")
	}

	var productID string
	err = s.observe("create_product", func() (err error) {
		productID, err = s.Proc.CreateProduct(ctx, payments.Product{ID: key, Name: item.Name, ImageURL: item.ImageURL})
		return err
	})
	if err != nil {
		return domain.PriceMirror{}, upstream(err)
	}

	var priceID string
	err = s.observe("create_price", func() (err error) {
		priceID, err = s.Proc.CreatePrice(ctx, payments.PriceRequest{
			ProductID:      productID,
			UnitAmount:     cents,
			Currency:       payments.CurrencyUSD,
			IdempotencyKey: "price-" + key,
		})
		return err
	})
	if err != nil {
		return domain.PriceMirror{}, upstream(err)
	}

	m := domain.PriceMirror{ProductKey: key, ItemID: item.ID, ProductID: productID, PriceID: priceID}
	if err := s.Mirrors.Insert(ctx, m); err != nil {
		// a concurrent publish got there first
		if apperr.Is(err, apperr.CodeConflict) {
			return s.Mirrors.ByProductKey(ctx, key)
		}
		return domain.PriceMirror{}, err
	}
	return m, nil
}

// Resolve returns the external price key of itemID, NotFound when it was never published.
func (s *MirrorService) Resolve(ctx context.Context, itemID int64) (string, error) {
	m, err := s.Mirrors.ByProductKey(ctx, domain.ProductKey(itemID))
	if err != nil {
		return "", err
	}
	return m.PriceID, nil
}

// ResolveAll maps every item id to its price id in one lookup. The first unpriced item is NotFound.
func (s *MirrorService) ResolveAll(ctx context.Context, itemIDs []int64) (map[int64]string, error) {
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		keys = append(keys, domain.ProductKey(id))
	}
	found, err := s.Mirrors.ByProductKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(itemIDs))
	for _, id := range itemIDs {
		m, ok := found[domain.ProductKey(id)]
		if !ok {
			return nil, apperr.New(apperr.CodeNotFound, "item "+strconv.FormatInt(id, 10)+" has no price yet")
		}
		out[id] = m.PriceID
	}
	return out, nil
}

func (s *MirrorService) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.Metrics.ObserveUpstream(op, err, time.Since(start))
	return err
}

// upstream keeps typed processor errors and classifies the rest as failures.
func upstream(err error) error {
	if apperr.As(err) != nil {
		return err
	}
	return apperr.Wrap(apperr.CodeUpstreamFailure, err, "payment provider request failed")
}
