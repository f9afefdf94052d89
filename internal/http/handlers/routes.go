package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "shopfront/internal/log"
)

type AppOptions struct {
	Views fiber.Views
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// Requests per minute per client; 0 means 60.
	RateLimit   int
	AccessLog   bool
	LoginPerMin int
}

// NewApp builds the fiber app with the middleware chain and every route.
func NewApp(d *Deps, opts AppOptions) *fiber.App {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.LoginPerMin <= 0 {
		opts.LoginPerMin = 5
	}
	app := fiber.New(fiber.Config{
		Views:        opts.Views,
		ErrorHandler: ErrorHandler,
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        opts.RateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/static/") || p == "/healthz" || p == "/metrics"
		},
	}))
	app.Use(Identify(d.Auth))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		ContextKey:     "csrf",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	app.Static("/static", "./web/static")

	// Catalog
	app.Get("/", d.CatalogHandler.Home)
	app.Get("/item/:id", d.CatalogHandler.Item)
	app.Post("/item/:id", d.CatalogHandler.AddWithQuantity)
	app.Post("/add-to-cart/:id", d.CatalogHandler.AddOne)

	// Cart
	app.Get("/view-cart", RequireUser(), d.CartHandler.View)
	app.Post("/edit-cart/:id", RequireUser(), d.CartHandler.Edit)
	app.Post("/remove/:id", RequireUser(), d.CartHandler.Remove)

	// Checkout & orders
	app.Post("/create-checkout-session", RequireUser(), d.OrderHandler.CreateSession)
	app.Get("/success", RequireUser(), d.OrderHandler.Success)
	app.Get("/cancel", d.OrderHandler.Cancel)
	app.Get("/orders", RequireUser(), d.OrderHandler.History)

	// Accounts
	app.Get("/register", d.AuthHandler.RegisterForm)
	app.Post("/register", d.AuthHandler.Register)
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        opts.LoginPerMin,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Flash": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	// Admin
	app.Get("/new-item", RequireAdmin(), d.AdminHandler.NewItemForm)
	app.Post("/new-item", RequireAdmin(), d.AdminHandler.CreateItem)
	app.Post("/admin/items/:id/publish", RequireAdmin(), d.AdminHandler.Republish)

	// Ops
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Page not found"})
	})
	return app
}
