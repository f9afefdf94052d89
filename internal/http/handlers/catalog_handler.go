package handlers

import (
	"shopfront/internal/apperr"
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
	Cart    *services.CartService
}

func (h *CatalogHandler) Home(c *fiber.Ctx) error {
	items, err := h.Catalog.List(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, "index", fiber.Map{"Items": items})
}

func (h *CatalogHandler) Item(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "item"})
		return apperr.NotFound("catalog item")
	}
	it, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return render(c, "item", fiber.Map{"Item": it})
}

// AddWithQuantity handles the item page form.
func (h *CatalogHandler) AddWithQuantity(c *fiber.Ctx) error {
	var form validate.QuantityForm
	if err := c.BodyParser(&form); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid form")
	}
	qty, ok := validate.Qty(form.Quantity)
	if !ok {
		return apperr.New(apperr.CodeValidation, "quantity must be a whole number of at least 1")
	}
	return h.add(c, qty)
}

// AddOne is the one-click button on the catalog page.
func (h *CatalogHandler) AddOne(c *fiber.Ctx) error {
	return h.add(c, 1)
}

func (h *CatalogHandler) add(c *fiber.Ctx, qty int) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apperr.NotFound("catalog item")
	}
	who := identity(c)
	lineID, err := h.Cart.AddToCart(c.UserContext(), who, id, qty)
	if err != nil {
		if apperr.Is(err, apperr.CodeUnauthorized) && !who.Authenticated {
			return flashRedirect(c, "Log in to add to cart", "/login")
		}
		return err
	}
	log.Audit(c, "cart.add", map[string]any{"item_id": id, "line_id": lineID, "quantity": qty})
	return flashRedirect(c, "Added to cart.", "/view-cart")
}
