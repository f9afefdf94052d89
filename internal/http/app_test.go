package handlers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"shopfront/internal/config"
	"shopfront/internal/domain"
	"shopfront/internal/http/handlers"
	"shopfront/internal/locks"
	"shopfront/internal/metrics"
	"shopfront/internal/payments"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

type stubProcessor struct {
	mu         sync.Mutex
	sessions   []payments.SessionRequest
	sessionErr error
	paid       map[string]bool
}

func (s *stubProcessor) CreateProduct(_ context.Context, p payments.Product) (string, error) {
	return p.ID, nil
}

func (s *stubProcessor) CreatePrice(_ context.Context, req payments.PriceRequest) (string, error) {
	return "price_" + req.ProductID, nil
}

func (s *stubProcessor) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return payments.Session{}, s.sessionErr
	}
	s.sessions = append(s.sessions, req)
	id := "cs_" + strconv.Itoa(len(s.sessions))
	return payments.Session{ID: id, URL: "https://pay.example/" + id}, nil
}

func (s *stubProcessor) GetCheckoutSession(_ context.Context, id string) (payments.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return payments.Session{ID: id, Paid: s.paid[id]}, nil
}

type testApp struct {
	app  *fiber.App
	deps *handlers.Deps
	proc *stubProcessor
	reg  *prometheus.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{BaseURL: "http://shop.test", SuccessPath: "/success", CancelPath: "/cancel", AdminID: 1}
	proc := &stubProcessor{paid: map[string]bool{}}
	reg := prometheus.NewRegistry()
	deps := handlers.NewDeps(db, cfg, proc, locks.NewLocalLocker(time.Minute), metrics.NewShop(reg))
	app := handlers.NewApp(deps, handlers.AppOptions{
		Views:    html.New("../../web/templates", ".html"),
		Gatherer: reg,
	})
	return &testApp{app: app, deps: deps, proc: proc, reg: reg}
}

// account registers a user bound to sid; the first one becomes the admin.
func (ta *testApp) account(t *testing.T, sid, email string) *domain.User {
	t.Helper()
	u, err := ta.deps.Auth.Register(context.Background(), sid, email, "Tester", "Passw0rd!")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (ta *testApp) adminItem(t *testing.T, name, price string) domain.CatalogItem {
	t.Helper()
	it, err := ta.deps.AdminHandler.Catalog.Create(context.Background(),
		domain.Identity{UserID: 1, Authenticated: true, Admin: true},
		services.NewItem{Name: name, Quantity: 3, Price: decimal.RequireFromString(price)})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

func (ta *testApp) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func (ta *testApp) get(t *testing.T, path, sid string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return ta.do(t, req)
}

// csrfToken fetches a page to obtain a token cookie.
func (ta *testApp) csrfToken(t *testing.T) string {
	t.Helper()
	resp := ta.get(t, "/login", "")
	tok := cookie(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

func (ta *testApp) post(t *testing.T, path, sid string, form url.Values) *http.Response {
	t.Helper()
	tok := ta.csrfToken(t)
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", tok)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return ta.do(t, req)
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func flash(resp *http.Response) string {
	v, _ := url.QueryUnescape(cookie(resp, "flash"))
	return v
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

var errUpstream = errors.New("stripe: card_declined secret-detail req_abc")
