package services

import (
	"context"
	"strconv"
	"time"

	"shopfront/internal/apperr"
	"shopfront/internal/config"
	"shopfront/internal/domain"
	"shopfront/internal/locks"
	applog "shopfront/internal/log"
	"shopfront/internal/metrics"
	"shopfront/internal/payments"
	"shopfront/internal/repos"

	"github.com/shopspring/decimal"
)

type CheckoutService struct {
	Carts   *repos.CartRepo
	Items   *repos.CatalogRepo
	Orders  *repos.OrderRepo
	Mirror  *MirrorService
	Proc    payments.Processor
	Locks   locks.Locker
	Metrics *metrics.Shop

	successURL string
	cancelURL  string
}

func NewCheckoutService(carts *repos.CartRepo, items *repos.CatalogRepo, orders *repos.OrderRepo,
	mirror *MirrorService, proc payments.Processor, lk locks.Locker, m *metrics.Shop, cfg config.Config) *CheckoutService {
	return &CheckoutService{
		Carts: carts, Items: items, Orders: orders, Mirror: mirror, Proc: proc, Locks: lk, Metrics: m,
		successURL: cfg.SuccessURL(),
		cancelURL:  cfg.CancelURL(),
	}
}

// Checkout turns the buyer's cart into one hosted payment session, one line item per cart line
// in cart order. Nothing is requested when any line lacks a published price.
func (s *CheckoutService) Checkout(ctx context.Context, who domain.Identity) (payments.Session, error) {
	if err := requireBuyer(who); err != nil {
		return payments.Session{}, err
	}
	lease, ok, err := s.Locks.TryAcquire(ctx, "checkout:"+strconv.FormatInt(who.UserID, 10))
	if err != nil {
		return payments.Session{}, err
	}
	if !ok {
		s.Metrics.IncCheckout("busy")
		return payments.Session{}, apperr.New(apperr.CodeConflict, "a checkout is already in progress")
	}
	defer func() { _ = lease.Release(context.Background()) }()

	lines, err := s.Carts.ListForBuyer(ctx, who.UserID)
	if err != nil {
		return payments.Session{}, err
	}
	if len(lines) == 0 {
		s.Metrics.IncCheckout("empty")
		return payments.Session{}, apperr.New(apperr.CodeEmptyCart, "cart is empty")
	}

	req := payments.SessionRequest{
		Mode:            payments.ModePayment,
		SuccessURL:      s.successURL,
		CancelURL:       s.cancelURL,
		ClientReference: strconv.FormatInt(who.UserID, 10),
	}
	itemIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		itemIDs = append(itemIDs, l.ItemID)
	}
	prices, err := s.Mirror.ResolveAll(ctx, itemIDs)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			s.Metrics.IncCheckout("unpriced")
		}
		return payments.Session{}, err
	}

	snapshot := make([]domain.OrderLine, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		priceID := prices[l.ItemID]
		item, err := s.Items.Get(ctx, l.ItemID)
		if err != nil {
			return payments.Session{}, err
		}
		req.LineItems = append(req.LineItems, payments.LineItem{PriceID: priceID, Quantity: int64(l.Quantity)})
		snapshot = append(snapshot, domain.OrderLine{
			CartLineID: l.ID,
			ItemID:     l.ItemID,
			PriceID:    priceID,
			Quantity:   l.Quantity,
			UnitPrice:  item.Price,
		})
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	start := time.Now()
	sess, err := s.Proc.CreateCheckoutSession(ctx, req)
	s.Metrics.ObserveUpstream("create_checkout_session", err, time.Since(start))
	if err != nil {
		s.Metrics.IncCheckout("upstream_error")
		return payments.Session{}, upstream(err)
	}

	if _, err := s.Orders.Create(ctx, domain.Order{BuyerID: who.UserID, SessionID: sess.ID, Total: total}, snapshot); err != nil {
		logger := applog.Background("checkout.order.fail")
		logger.Error().Err(err).Int64("buyer_id", who.UserID).Str("session_id", sess.ID).
			Msg("session created without a local order")
		s.Metrics.IncCheckout("order_error")
		return payments.Session{}, err
	}
	s.Metrics.IncCheckout("redirected")
	return sess, nil
}

// Confirm settles the order behind sessionID from the processor's view of the session.
// Paid sessions take exactly the submitted quantities off the cart.
func (s *CheckoutService) Confirm(ctx context.Context, who domain.Identity, sessionID string) (domain.Order, error) {
	if err := requireBuyer(who); err != nil {
		return domain.Order{}, err
	}
	o, err := s.Orders.BySession(ctx, sessionID)
	if err != nil {
		return domain.Order{}, err
	}
	if !who.Is(o.BuyerID) {
		return domain.Order{}, apperr.Unauthorized("order belongs to another buyer")
	}
	if o.Status != domain.OrderPending {
		return o, nil
	}

	start := time.Now()
	sess, err := s.Proc.GetCheckoutSession(ctx, sessionID)
	s.Metrics.ObserveUpstream("get_checkout_session", err, time.Since(start))
	if err != nil {
		return domain.Order{}, upstream(err)
	}

	switch {
	case sess.Paid:
		lines, err := s.Orders.Lines(ctx, o.ID)
		if err != nil {
			return domain.Order{}, err
		}
		if _, err := s.Orders.MarkPaid(ctx, s.Carts, o, lines); err != nil {
			return domain.Order{}, err
		}
	case sess.Expired:
		if err := s.Orders.UpdateStatus(ctx, o.ID, domain.OrderCanceled); err != nil {
			return domain.Order{}, err
		}
	default:
		return o, nil
	}
	return s.Orders.BySession(ctx, sessionID)
}

func (s *CheckoutService) ListOrders(ctx context.Context, who domain.Identity) ([]domain.Order, error) {
	if err := requireBuyer(who); err != nil {
		return nil, err
	}
	return s.Orders.ListByBuyer(ctx, who.UserID)
}
