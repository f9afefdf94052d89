package handlers

import (
	"errors"

	"shopfront/internal/apperr"
	applog "shopfront/internal/log"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps typed errors to a status and a message safe to show.
// Server-side and upstream failures only ever show the generic message; the cause is logged.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := apperr.MetadataFor(apperr.CodeInternal).PublicMessage

	var fe *fiber.Error
	switch {
	case apperr.As(err) != nil:
		code := apperr.CodeOf(err)
		meta := apperr.MetadataFor(code)
		status = meta.HTTPStatus
		msg = meta.PublicMessage
		if status < 500 && code != apperr.CodeNotFound {
			msg = apperr.As(err).Message()
		}
	case errors.As(err, &fe):
		status = fe.Code
		if status < 500 {
			msg = fe.Message
		}
	}

	switch {
	case status >= 500:
		applog.Error(c, "server.error", err, map[string]any{"code": string(apperr.CodeOf(err))})
	case status == fiber.StatusForbidden:
		applog.Security(c, "access.denied", map[string]any{"error": err.Error()})
	default:
		applog.Info(c, "request.rejected", map[string]any{"error": err.Error()})
	}

	if rerr := c.Status(status).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(status).SendString(msg)
	}
	return nil
}
