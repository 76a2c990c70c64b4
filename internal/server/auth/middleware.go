package auth

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/gofiber/fiber/v2"
)

// Keys under which Middleware stores the caller identity in fiber locals.
const (
	LocalUser  = "user"
	LocalAdmin = "admin"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller's name and admin flag in c.Locals.
func Middleware(secretKey []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(common.AuthorizationHeader)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization token",
			})
		}

		claims, err := ParseToken(strings.TrimSpace(token), secretKey)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}

		c.Locals(LocalUser, claims.User)
		c.Locals(LocalAdmin, claims.Admin)
		return c.Next()
	}
}

// User returns the authenticated caller stored by Middleware.
func User(c *fiber.Ctx) string {
	u, _ := c.Locals(LocalUser).(string)
	return u
}

// IsAdmin reports whether the authenticated caller is privileged.
func IsAdmin(c *fiber.Ctx) bool {
	a, _ := c.Locals(LocalAdmin).(bool)
	return a
}
