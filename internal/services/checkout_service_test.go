package services_test

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/apperr"
	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/payments"
)

func TestCheckoutSendsOneLineItemPerCartLine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")
	rug := e.item(t, "Rug", "2.50")

	for _, add := range []struct {
		id  int64
		qty int
	}{{lamp.ID, 2}, {rug.ID, 1}, {lamp.ID, 3}} {
		_, err := e.cart.AddToCart(ctx, buyer, add.id, add.qty)
		require.NoError(t, err)
	}

	sess, err := e.checkout.Checkout(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_1", sess.URL)

	require.Len(t, e.proc.sessions, 1)
	req := e.proc.sessions[0]
	assert.Equal(t, payments.ModePayment, req.Mode)
	assert.Equal(t, "http://shop.test/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "http://shop.test/cancel", req.CancelURL)
	lampKey := "price_" + domain.ProductKey(lamp.ID)
	rugKey := "price_" + domain.ProductKey(rug.ID)
	assert.Equal(t, []payments.LineItem{
		{PriceID: lampKey, Quantity: 2},
		{PriceID: rugKey, Quantity: 1},
		{PriceID: lampKey, Quantity: 3},
	}, req.LineItems)

	orders, err := e.checkout.ListOrders(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderPending, orders[0].Status)
	assert.Equal(t, "52.5", orders[0].Total.String())

	lines, err := e.cart.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, lines, 3, "submitting leaves the cart untouched")
}

func TestCheckoutEmptyCart(t *testing.T) {
	e := newEnv(t)
	buyer := e.buyer(t, "b@example.com")

	_, err := e.checkout.Checkout(context.Background(), buyer)
	requireCode(t, err, apperr.CodeEmptyCart)
	assert.Empty(t, e.proc.sessions)
}

func TestCheckoutAnonymousIsUnauthorized(t *testing.T) {
	e := newEnv(t)
	_, err := e.checkout.Checkout(context.Background(), domain.Anonymous())
	requireCode(t, err, apperr.CodeUnauthorized)
}

func TestCheckoutAbortsOnUnpublishedItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")
	e.proc.failPrice = errBoom
	rug := e.item(t, "Rug", "2.50")
	e.proc.failPrice = nil

	_, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)
	_, err = e.cart.AddToCart(ctx, buyer, rug.ID, 1)
	require.NoError(t, err)

	_, err = e.checkout.Checkout(ctx, buyer)
	requireCode(t, err, apperr.CodeNotFound)
	assert.Empty(t, e.proc.sessions)

	orders, err := e.checkout.ListOrders(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestResolveAllNamesFirstUnpricedItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lamp := e.item(t, "Lamp", "10.00")
	e.proc.failPrice = errBoom
	rug := e.item(t, "Rug", "2.50")
	e.proc.failPrice = nil

	prices, err := e.mirror.ResolveAll(ctx, []int64{lamp.ID, lamp.ID})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{lamp.ID: "price_" + domain.ProductKey(lamp.ID)}, prices)

	_, err = e.mirror.ResolveAll(ctx, []int64{lamp.ID, rug.ID})
	requireCode(t, err, apperr.CodeNotFound)
	assert.Contains(t, apperr.As(err).Message(), strconv.FormatInt(rug.ID, 10))
}

func TestCheckoutLogsSessionWhenOrderIsNotRecorded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")
	_, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	applog.Configure(&buf, "info", "json")
	t.Cleanup(func() { applog.Configure(os.Stdout, "info", "json") })

	_, err = e.db.Exec(`DROP TABLE order_lines`)
	require.NoError(t, err)

	_, err = e.checkout.Checkout(ctx, buyer)
	require.Error(t, err)
	require.Len(t, e.proc.sessions, 1)
	assert.Contains(t, buf.String(), `"session_id":"cs_1"`)
	assert.Contains(t, buf.String(), `"action":"checkout.order.fail"`)
}

func TestCheckoutUpstreamFailureKeepsCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")
	_, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)

	e.proc.failSession = errBoom
	_, err = e.checkout.Checkout(ctx, buyer)
	requireCode(t, err, apperr.CodeUpstreamFailure)

	e.proc.failSession = apperr.Wrap(apperr.CodeUpstreamTimeout, errBoom, "slow")
	_, err = e.checkout.Checkout(ctx, buyer)
	requireCode(t, err, apperr.CodeUpstreamTimeout)

	lines, err := e.cart.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestConcurrentCheckoutsCreateOneSessionAtATime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")
	_, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.checkout.Checkout(ctx, buyer)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	}
	assert.GreaterOrEqual(t, ok, 1)
	e.proc.mu.Lock()
	defer e.proc.mu.Unlock()
	assert.Len(t, e.proc.sessions, ok)
}

func TestConfirmPaidSessionClearsSubmittedLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	other := e.buyer(t, "o@example.com")
	lamp := e.item(t, "Lamp", "10.00")

	_, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)
	sess, err := e.checkout.Checkout(ctx, buyer)
	require.NoError(t, err)

	// added after submitting; must survive confirmation
	later, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 2)
	require.NoError(t, err)

	_, err = e.checkout.Confirm(ctx, other, sess.ID)
	requireCode(t, err, apperr.CodeUnauthorized)

	o, err := e.checkout.Confirm(ctx, buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, o.Status, "unpaid session stays pending")

	e.proc.paid[sess.ID] = true
	o, err = e.checkout.Confirm(ctx, buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)

	lines, err := e.cart.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, later, lines[0].ID)

	o, err = e.checkout.Confirm(ctx, buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)
}

func TestConfirmLeavesUnitsAddedAfterCheckout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")

	line, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)
	sess, err := e.checkout.Checkout(ctx, buyer)
	require.NoError(t, err)
	require.NoError(t, e.cart.EditQuantity(ctx, buyer, line, 5))

	e.proc.paid[sess.ID] = true
	o, err := e.checkout.Confirm(ctx, buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)

	lines, err := e.cart.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, line, lines[0].ID)
	assert.Equal(t, 4, lines[0].Quantity, "only the paid unit leaves the cart")
}

func TestConfirmExpiredSessionCancelsOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.buyer(t, "b@example.com")
	lamp := e.item(t, "Lamp", "10.00")
	_, err := e.cart.AddToCart(ctx, buyer, lamp.ID, 1)
	require.NoError(t, err)
	sess, err := e.checkout.Checkout(ctx, buyer)
	require.NoError(t, err)

	e.proc.expired[sess.ID] = true
	o, err := e.checkout.Confirm(ctx, buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCanceled, o.Status)

	lines, err := e.cart.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = e.checkout.Confirm(ctx, buyer, "cs_unknown")
	requireCode(t, err, apperr.CodeNotFound)
}
