package handlers

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"toko-pay/internal/models"
	"toko-pay/internal/repositories"
	"toko-pay/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the public order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
}

// RegisterAdminRoutes registers the operator read routes. router must already be protected.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
}

// HandleCreateOrder creates a new order and, for card payment, returns the invoice page URL.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	result, err := h.service.CreateOrder(c.UserContext(), req)
	if err == nil {
		return c.Status(fiber.StatusCreated).JSON(result)
	}

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	case result != nil && errors.Is(err, services.ErrPaymentNotStarted):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"order_id": result.OrderID,
			"error":    services.ErrPaymentNotStarted.Error(),
		})
	default:
		log.Printf("Error creating order: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create order",
			"error":   err.Error(),
		})
	}
}

// OrderView is an order as the admin API shows it, with the line items decoded.
type OrderView struct {
	models.Order
	Items models.LineItems `json:"items"`
}

func newOrderView(o models.Order) OrderView {
	items, err := o.LineItems()
	if err != nil {
		log.Printf("Warning: order %d has unreadable items: %v", o.ID, err)
	}
	if items == nil {
		items = models.LineItems{}
	}
	return OrderView{Order: o, Items: items}
}

// HandleListOrders lists orders newest first. Query parameters: limit, offset.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)

	orders, err := h.service.ListOrders(c.UserContext(), limit, offset)
	if err != nil {
		log.Printf("Error listing orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return c.JSON(views)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Order id must be a positive integer",
		})
	}

	order, err := h.service.GetOrder(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Order with ID %d not found", id),
			})
		}
		log.Printf("Error getting order by ID %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	return c.JSON(newOrderView(*order))
}
