package middleware

import (
	"log"
	"strings"

	"toko-pay/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set for requests admitted by OperatorRequired.
const (
	LocalOperatorID = "operator_id"
	LocalUsername   = "username"
)

// OperatorRequired admits requests carrying a valid operator JWT as "Authorization: Bearer <token>".
func OperatorRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return unauthorized(c, "Bearer token is required")
		}

		claims, err := authService.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			log.Printf("JWT validation failed for %s %s: %v", c.Method(), c.Path(), err)
			return unauthorized(c, "Invalid or expired token")
		}
		operatorID, _ := claims["sub"].(string)
		if operatorID == "" {
			return unauthorized(c, "Token does not identify an operator")
		}

		c.Locals(LocalOperatorID, operatorID)
		c.Locals(LocalUsername, claims["username"])
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": message})
}
