package handlers

import (
	"shopfront/internal/config"
	"shopfront/internal/locks"
	"shopfront/internal/metrics"
	"shopfront/internal/payments"
	"shopfront/internal/repos"
	"shopfront/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth      *services.AuthService
	Publisher *services.Publisher

	AuthHandler    *AuthHandler
	CatalogHandler *CatalogHandler
	CartHandler    *CartHandler
	OrderHandler   *OrderHandler
	AdminHandler   *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, proc payments.Processor, lk locks.Locker, m *metrics.Shop) *Deps {
	userRepo := repos.NewUserRepo(db)
	catalogRepo := repos.NewCatalogRepo(db)
	cartRepo := repos.NewCartRepo(db)
	mirrorRepo := repos.NewPriceMirrorRepo(db)
	jobRepo := repos.NewPublishJobRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	authSvc := services.NewAuthService(userRepo, cfg.AdminID)
	mirrorSvc := services.NewMirrorService(mirrorRepo, proc, m)
	publisher := services.NewPublisher(jobRepo, catalogRepo, mirrorSvc, lk, m, cfg.Publisher)
	catalogSvc := services.NewCatalogService(db, catalogRepo, jobRepo, publisher)
	cartSvc := services.NewCartService(cartRepo, catalogRepo)
	checkoutSvc := services.NewCheckoutService(cartRepo, catalogRepo, orderRepo, mirrorSvc, proc, lk, m, cfg)

	return &Deps{
		Auth:           authSvc,
		Publisher:      publisher,
		AuthHandler:    &AuthHandler{Auth: authSvc},
		CatalogHandler: &CatalogHandler{Catalog: catalogSvc, Cart: cartSvc},
		CartHandler:    &CartHandler{Cart: cartSvc},
		OrderHandler:   &OrderHandler{Checkout: checkoutSvc},
		AdminHandler:   &AdminHandler{Catalog: catalogSvc},
	}
}
