package handlers

import (
	"shopfront/internal/apperr"
	applog "shopfront/internal/log"
	"shopfront/internal/services"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	Checkout *services.CheckoutService
}

// CreateSession sends the buyer to the processor's hosted payment page.
func (h *OrderHandler) CreateSession(c *fiber.Ctx) error {
	sess, err := h.Checkout.Checkout(c.UserContext(), identity(c))
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeEmptyCart:
			return flashRedirect(c, "Your cart is empty.", "/view-cart", fiber.StatusSeeOther)
		case apperr.CodeConflict:
			return flashRedirect(c, "Your checkout is already being prepared.", "/view-cart", fiber.StatusSeeOther)
		case apperr.CodeUpstreamFailure, apperr.CodeUpstreamTimeout:
			applog.Error(c, "checkout.upstream.fail", err, nil)
		}
		return err
	}
	applog.Audit(c, "checkout.session.created", map[string]any{"session_id": sess.ID})
	return c.Redirect(sess.URL, fiber.StatusSeeOther)
}

func (h *OrderHandler) Success(c *fiber.Ctx) error {
	sid := c.Query("session_id")
	if sid == "" {
		return render(c, "success", nil)
	}
	o, err := h.Checkout.Confirm(c.UserContext(), identity(c), sid)
	if err != nil {
		return err
	}
	applog.Audit(c, "checkout.confirm", map[string]any{"order_id": o.ID, "status": string(o.Status)})
	return render(c, "success", fiber.Map{"Order": o})
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	return render(c, "cancel", nil)
}

// History lists orders for the current logged-in user.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Checkout.ListOrders(c.UserContext(), identity(c))
	if err != nil {
		return err
	}
	return render(c, "orders", fiber.Map{"Orders": orders})
}
