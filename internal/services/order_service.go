package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"strings"

	"toko-pay/internal/models"
	"toko-pay/internal/notify"
	"toko-pay/internal/repositories"
	"toko-pay/pkg/monobank"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var hundred = decimal.NewFromInt(100)

// PaymentGateway issues payment invoices.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, in monobank.InvoiceRequest) (monobank.Invoice, error)
}

// Notifier delivers best-effort order notifications.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// PackSize accepts the pack size as a JSON string or number.
type PackSize string

func (p *PackSize) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PackSize(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("packSize must be a string or a number: %w", err)
	}
	*p = PackSize(n.String())
	return nil
}

// OrderItemRequest is one cart line of a CreateOrderRequest.
type OrderItemRequest struct {
	ID       uint            `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gte=1"`
	PackSize PackSize        `json:"packSize"`
}

// CreateOrderRequest is the order creation payload sent by the shop client.
type CreateOrderRequest struct {
	Name          string             `json:"name" validate:"required"`
	Phone         string             `json:"phone" validate:"required"`
	City          string             `json:"city" validate:"required"`
	CityRef       string             `json:"cityRef"`
	Warehouse     string             `json:"warehouse" validate:"required"`
	WarehouseRef  string             `json:"warehouseRef"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalPrice    *decimal.Decimal   `json:"totalPrice" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"oneof=card cash"`
}

// CreateOrderResult is returned whenever the order was persisted, even if the payment step failed.
type CreateOrderResult struct {
	OrderID    uint   `json:"order_id"`
	PaymentURL string `json:"payment_url,omitempty"`
}

// OrderServiceConfig holds the payment parameters of the intake flow.
type OrderServiceConfig struct {
	// WebhookURL is handed to the gateway, which calls it back once the invoice is paid.
	WebhookURL string
	// Destination is the purpose of payment shown on the invoice page.
	Destination string
}

// OrderService handles order intake: validation, persistence, invoicing.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	gateway     PaymentGateway
	notifier    Notifier
	cfg         OrderServiceConfig
	validate    *validator.Validate
}

// NewOrderService creates a new OrderService. productRepo may be nil, in which case item ids are not checked.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, gateway PaymentGateway, notifier Notifier, cfg OrderServiceConfig) *OrderService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		gateway:     gateway,
		notifier:    notifier,
		cfg:         cfg,
		validate:    v,
	}
}

// CreateOrder persists a new order and, for card payment, obtains the invoice page URL.
//
// A nil result means nothing was stored. A non-nil result with an error matching ErrPaymentNotStarted
// means the order exists with status New but the customer cannot pay online yet.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	normalize(&req)
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	order := &models.Order{
		Name:          req.Name,
		Phone:         req.Phone,
		City:          req.City,
		CityRef:       req.CityRef,
		Warehouse:     req.Warehouse,
		WarehouseRef:  req.WarehouseRef,
		TotalAmount:   *req.TotalPrice,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
	}
	items := lo.Map(req.Items, func(it OrderItemRequest, _ int) models.LineItem {
		return models.LineItem{
			ProductID: it.ID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			PackSize:  string(it.PackSize),
		}
	})
	if err := order.SetLineItems(items); err != nil {
		return nil, err
	}

	orderID, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	log.Printf("Order %d created (%s, total %s)", orderID, order.PaymentMethod, order.TotalAmount.StringFixed(2))

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Event{Kind: notify.OrderCreated, Order: *order})
	}

	result := &CreateOrderResult{OrderID: orderID}
	if order.PaymentMethod != models.PaymentMethodCard {
		return result, nil
	}

	payURL, err := s.startPayment(ctx, order)
	if err != nil {
		log.Printf("Warning: order %d kept without invoice: %v", orderID, err)
		return result, err
	}
	result.PaymentURL = payURL
	return result, nil
}

// startPayment issues the invoice and attaches its reference before the pay URL is released.
func (s *OrderService) startPayment(ctx context.Context, order *models.Order) (string, error) {
	if s.gateway == nil {
		return "", &GatewayUnavailableError{OrderID: order.ID, Err: errors.New("no payment gateway configured")}
	}

	invoice, err := s.gateway.CreateInvoice(ctx, monobank.InvoiceRequest{
		Amount:      MinorUnits(order.TotalAmount),
		Reference:   strconv.FormatUint(uint64(order.ID), 10),
		Destination: s.destination(order.ID),
		WebhookURL:  s.cfg.WebhookURL,
	})
	if err != nil {
		return "", &GatewayUnavailableError{OrderID: order.ID, Err: err}
	}

	if err := s.orderRepo.AttachInvoiceReference(ctx, order.ID, invoice.InvoiceID); err != nil {
		return "", fmt.Errorf("%w: attach invoice %s to order %d: %w", ErrPaymentNotStarted, invoice.InvoiceID, order.ID, err)
	}
	log.Printf("Order %d attached to invoice %s", order.ID, invoice.InvoiceID)
	return invoice.PageURL, nil
}

func (s *OrderService) destination(orderID uint) string {
	if s.cfg.Destination == "" {
		return fmt.Sprintf("Order #%d", orderID)
	}
	return fmt.Sprintf("%s #%d", s.cfg.Destination, orderID)
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// ListOrders returns orders newest first. A non-positive limit selects the default page size.
func (s *OrderService) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset = max(offset, 0)
	return s.orderRepo.List(ctx, limit, offset)
}

// MinorUnits converts an amount to the smallest currency unit, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func normalize(req *CreateOrderRequest) {
	for _, f := range []*string{&req.Name, &req.Phone, &req.City, &req.CityRef, &req.Warehouse, &req.WarehouseRef} {
		*f = strings.TrimSpace(*f)
	}
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = string(models.PaymentMethodCard)
	}
}

func (s *OrderService) validateRequest(ctx context.Context, req CreateOrderRequest) error {
	verr := &ValidationError{}

	if err := s.validate.StructCtx(ctx, req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate order request: %w", err)
		}
		for _, e := range fieldErrs {
			verr.add(fieldPath(e), fmt.Sprintf("failed on the '%s' tag", e.Tag()))
		}
	}
	if req.TotalPrice != nil && req.TotalPrice.IsNegative() {
		verr.add("totalPrice", "must not be negative")
	}
	for i, it := range req.Items {
		if it.Price.IsNegative() {
			verr.add(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
	}

	if len(verr.Fields) == 0 && s.productRepo != nil {
		for i, it := range req.Items {
			if _, err := s.productRepo.GetByID(ctx, it.ID); err != nil {
				if !errors.Is(err, repositories.ErrProductNotFound) {
					return fmt.Errorf("failed to look up product %d: %w", it.ID, err)
				}
				verr.add(fmt.Sprintf("items[%d].id", i), "unknown product")
			}
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// fieldPath strips the struct name from the validator namespace: "CreateOrderRequest.items[0].id" -> "items[0].id".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}
