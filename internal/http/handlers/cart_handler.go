package handlers

import (
	"shopfront/internal/apperr"
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), identity(c))
	if err != nil {
		return err
	}
	return render(c, "view-cart", fiber.Map{"Cart": cv})
}

func (h *CartHandler) Edit(c *fiber.Ctx) error {
	lineID, ok := validate.ID(c.Params("id"))
	if !ok {
		return apperr.NotFound("cart line")
	}
	var form validate.QuantityForm
	if err := c.BodyParser(&form); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid form")
	}
	qty, ok := validate.Qty(form.Quantity)
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "quantity", "line_id": lineID})
		return flashRedirect(c, "Quantity must be a whole number of at least 1.", "/view-cart")
	}
	if err := h.Cart.EditQuantity(c.UserContext(), identity(c), lineID, qty); err != nil {
		return err
	}
	log.Audit(c, "cart.edit", map[string]any{"line_id": lineID, "quantity": qty})
	return c.Redirect("/view-cart")
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	lineID, ok := validate.ID(c.Params("id"))
	if !ok {
		return apperr.NotFound("cart line")
	}
	if err := h.Cart.RemoveLine(c.UserContext(), identity(c), lineID); err != nil {
		return err
	}
	log.Audit(c, "cart.remove", map[string]any{"line_id": lineID})
	return c.Redirect("/view-cart")
}
