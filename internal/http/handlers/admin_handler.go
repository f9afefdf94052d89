package handlers

import (
	"strconv"

	"shopfront/internal/apperr"
	applog "shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Catalog *services.CatalogService
}

// GET /new-item
func (h *AdminHandler) NewItemForm(c *fiber.Ctx) error {
	return render(c, "add-item", nil)
}

// POST /new-item
func (h *AdminHandler) CreateItem(c *fiber.Ctx) error {
	var form validate.ItemForm
	if err := c.BodyParser(&form); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid form")
	}
	if err := validate.Struct(form); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"form": "new-item", "error": err.Error()})
		return flashRedirect(c, apperr.As(err).Message(), "/new-item")
	}
	price, _ := validate.Price(form.Price)

	it, err := h.Catalog.Create(c.UserContext(), identity(c), services.NewItem{
		Name:        form.Name,
		ImageURL:    form.ImageURL,
		Quantity:    form.Quantity,
		Description: form.Description,
		Price:       price,
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeConflict) {
			return flashRedirect(c, "An item with this name already exists.", "/new-item")
		}
		return err
	}
	applog.Audit(c, "admin.item.create", map[string]any{"item_id": it.ID, "published": it.Purchasable})
	if !it.Purchasable {
		return flashRedirect(c, "Item saved. Pricing will be published shortly.", "/item/"+strconv.FormatInt(it.ID, 10))
	}
	return flashRedirect(c, "Item saved.", "/item/"+strconv.FormatInt(it.ID, 10))
}

// POST /admin/items/:id/publish
func (h *AdminHandler) Republish(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apperr.NotFound("catalog item")
	}
	it, err := h.Catalog.Republish(c.UserContext(), identity(c), id)
	if err != nil {
		if apperr.Is(err, apperr.CodeUpstreamFailure) || apperr.Is(err, apperr.CodeUpstreamTimeout) {
			applog.Error(c, "admin.item.publish.fail", err, map[string]any{"item_id": id})
			return flashRedirect(c, apperr.MetadataFor(apperr.CodeOf(err)).PublicMessage, "/item/"+strconv.FormatInt(id, 10))
		}
		return err
	}
	applog.Audit(c, "admin.item.publish", map[string]any{"item_id": it.ID})
	return flashRedirect(c, "Item published.", "/item/"+strconv.FormatInt(it.ID, 10))
}
