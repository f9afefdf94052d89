package services_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shopfront/internal/apperr"
	"shopfront/internal/config"
	"shopfront/internal/domain"
	"shopfront/internal/locks"
	"shopfront/internal/payments"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

type fakeProcessor struct {
	mu          sync.Mutex
	products    map[string]payments.Product
	prices      []payments.PriceRequest
	sessions    []payments.SessionRequest
	paid        map[string]bool
	expired     map[string]bool
	failProduct error
	failPrice   error
	failSession error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		products: map[string]payments.Product{},
		paid:     map[string]bool{},
		expired:  map[string]bool{},
	}
}

func (f *fakeProcessor) CreateProduct(_ context.Context, p payments.Product) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProduct != nil {
		return "", f.failProduct
	}
	f.products[p.ID] = p
	return p.ID, nil
}

func (f *fakeProcessor) CreatePrice(_ context.Context, req payments.PriceRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPrice != nil {
		return "", f.failPrice
	}
	f.prices = append(f.prices, req)
	return "price_" + req.ProductID, nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSession != nil {
		return payments.Session{}, f.failSession
	}
	f.sessions = append(f.sessions, req)
	id := "cs_" + strconv.Itoa(len(f.sessions))
	return payments.Session{ID: id, URL: "https://pay.example/" + id}, nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return payments.Session{ID: id, Paid: f.paid[id], Expired: f.expired[id]}, nil
}

type env struct {
	db       *sqlx.DB
	proc     *fakeProcessor
	users    *repos.UserRepo
	carts    *repos.CartRepo
	jobs     *repos.PublishJobRepo
	auth     *services.AuthService
	catalog  *services.CatalogService
	cart     *services.CartService
	mirror   *services.MirrorService
	pub      *services.Publisher
	checkout *services.CheckoutService
	admin    domain.Identity
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{BaseURL: "http://shop.test", SuccessPath: "/success", CancelPath: "/cancel", AdminID: 1}
	proc := newFakeProcessor()
	lk := locks.NewLocalLocker(time.Minute)

	users := repos.NewUserRepo(db)
	catalogRepo := repos.NewCatalogRepo(db)
	carts := repos.NewCartRepo(db)
	jobs := repos.NewPublishJobRepo(db)
	orders := repos.NewOrderRepo(db)

	mirror := services.NewMirrorService(repos.NewPriceMirrorRepo(db), proc, nil)
	pub := services.NewPublisher(jobs, catalogRepo, mirror, lk, nil, config.PublisherConfig{MaxAttempts: 3, BatchSize: 10, PollInterval: 20 * time.Millisecond})

	e := &env{
		db:       db,
		proc:     proc,
		users:    users,
		carts:    carts,
		jobs:     jobs,
		auth:     services.NewAuthService(users, cfg.AdminID),
		catalog:  services.NewCatalogService(db, catalogRepo, jobs, pub),
		cart:     services.NewCartService(carts, catalogRepo),
		mirror:   mirror,
		pub:      pub,
		checkout: services.NewCheckoutService(carts, catalogRepo, orders, mirror, proc, lk, nil, cfg),
	}
	admin, err := e.auth.Register(context.Background(), "sid-admin", "admin@shop.test", "Admin", "pw-admin")
	require.NoError(t, err)
	e.admin = domain.Identity{UserID: admin.ID, Authenticated: true, Admin: true}
	return e
}

func (e *env) buyer(t *testing.T, email string) domain.Identity {
	t.Helper()
	u, err := e.auth.Register(context.Background(), "sid-"+email, email, "Buyer", "pw")
	require.NoError(t, err)
	return domain.Identity{UserID: u.ID, Authenticated: true}
}

func (e *env) item(t *testing.T, name, price string) domain.CatalogItem {
	t.Helper()
	it, err := e.catalog.Create(context.Background(), e.admin, services.NewItem{
		Name:     name,
		Quantity: 5,
		Price:    decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return it
}

var errBoom = errors.New("boom")

func requireCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperr.CodeOf(err), "got %v", err)
}
