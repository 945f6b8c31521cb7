package handlers

import (
	"errors"
	"log"

	"toko-pay/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler issues operator tokens for the admin API.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers POST /auth/login. Operators are seeded from configuration, there is no signup.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Group("/auth").Post("/login", h.HandleLogin)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin checks operator credentials and returns a signed token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "username and password are required",
		})
	}

	token, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	switch {
	case err == nil:
		log.Printf("Operator %s logged in", req.Username)
		return c.JSON(fiber.Map{"token": token})
	case errors.Is(err, services.ErrInvalidCredentials):
		log.Printf("Rejected login for %s", req.Username)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
		})
	default:
		log.Printf("Error during login for operator %s: %v", req.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not log in",
			"error":   err.Error(),
		})
	}
}
