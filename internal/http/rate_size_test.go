package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestOversizedBodyRejected(t *testing.T) {
	ta := newTestApp(t)
	big := bytes.Repeat([]byte("a"), (1<<20)+10)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := ta.app.Test(req, -1)
	if err == nil && resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 or transport error, got %d", resp.StatusCode)
	}
}

func TestCSRFRequiredOnPost(t *testing.T) {
	ta := newTestApp(t)
	ta.account(t, "sid-a", "a@example.com")

	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "sid", Value: "sid-a"})
	resp := ta.do(t, req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", resp.StatusCode)
	}
}

func TestAddToCartRequiresCSRF(t *testing.T) {
	ta := newTestApp(t)
	ta.account(t, "sid-a", "a@example.com")
	it := ta.adminItem(t, "Lamp", "10.00")

	req := httptest.NewRequest(http.MethodPost, "/add-to-cart/"+strconv.FormatInt(it.ID, 10), strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "sid", Value: "sid-a"})
	if resp := ta.do(t, req); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", resp.StatusCode)
	}
	if resp := ta.get(t, "/add-to-cart/"+strconv.FormatInt(it.ID, 10), "sid-a"); resp.StatusCode == http.StatusFound {
		t.Fatal("GET must not add to the cart")
	}

	page := body(t, ta.get(t, "/view-cart", "sid-a"))
	if strings.Contains(page, "Lamp") {
		t.Fatalf("cart should still be empty: %s", page)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ta := newTestApp(t)
	ta.account(t, "sid-a", "a@example.com")
	ta.post(t, "/create-checkout-session", "sid-a", nil)

	if r := ta.get(t, "/healthz", ""); r.StatusCode != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", r.StatusCode)
	}
	m := body(t, ta.get(t, "/metrics", ""))
	if !strings.Contains(m, `shopfront_checkouts_total{outcome="empty"} 1`) {
		t.Fatalf("checkout metric missing: %s", m)
	}
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	ta := newTestApp(t)
	resp := ta.get(t, "/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(body(t, resp), "Page not found") {
		t.Fatal("friendly 404 missing")
	}
}
