package handlers

import (
	"errors"
	"time"

	"shopfront/internal/apperr"
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false,
		})
	}
	return sid
}

func (h *AuthHandler) RegisterForm(c *fiber.Ctx) error {
	return render(c, "register", nil)
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var form validate.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid form")
	}
	email, ok := validate.Email(form.Email)
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "email"})
		return flashRedirect(c, "Please enter a valid email address.", "/register")
	}
	if err := validate.Struct(form); err != nil {
		log.Security(c, "validation.fail", map[string]any{"form": "register", "error": err.Error()})
		return flashRedirect(c, "Name is required and passwords need at least 8 characters.", "/register")
	}

	sid := ensureSID(c)
	u, err := h.Auth.Register(c.UserContext(), sid, email, form.Name, form.Password)
	if err != nil {
		if apperr.Is(err, apperr.CodeConflict) {
			log.Security(c, "auth.register.duplicate", map[string]any{"email": email})
			return flashRedirect(c, "That email is already registered. Please log in.", "/login")
		}
		return err
	}
	log.Audit(c, "auth.register", map[string]any{"user_id": u.ID})
	return c.Redirect("/")
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", nil)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var form validate.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid form")
	}
	email, ok := validate.Email(form.Email)
	if !ok || validate.Struct(form) != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": form.Email, "reason": "bad_format"})
		return flashRedirect(c, "Invalid email or password.", "/login")
	}

	sid := ensureSID(c)
	u, err := h.Auth.Login(c.UserContext(), sid, email, form.Password)
	if err != nil {
		if errors.Is(err, services.ErrBadCreds) {
			log.Security(c, "auth.login.fail", map[string]any{"email": email})
			return flashRedirect(c, "Invalid email or password.", "/login")
		}
		return err
	}

	log.Audit(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return c.Redirect("/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c)
	_ = h.Auth.Logout(c.UserContext(), sid)
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/")
}
