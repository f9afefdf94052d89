package handlers

import (
	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Identify resolves the sid cookie once per request and stores the caller in Locals.
func Identify(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, u, err := auth.Identity(c.UserContext(), c.Cookies("sid"))
		if err != nil {
			applog.Error(c, "auth.identify.fail", err, nil)
		}
		c.Locals("identity", who)
		if u != nil {
			c.Locals("user", u)
			c.Locals("user_id", u.ID)
		}
		return c.Next()
	}
}

func identity(c *fiber.Ctx) domain.Identity {
	who, _ := c.Locals("identity").(domain.Identity)
	return who
}

// RequireUser enforces that a user is logged in; otherwise redirect to login.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !identity(c).Authenticated {
			return flashRedirect(c, "Please log in first.", "/login")
		}
		return c.Next()
	}
}

func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		who := identity(c)
		if !who.Authenticated {
			return flashRedirect(c, "Please log in first.", "/login")
		}
		if !who.Admin {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Access denied"})
		}
		return c.Next()
	}
}
