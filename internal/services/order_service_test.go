package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"toko-pay/internal/models"
	"toko-pay/internal/notify"
	"toko-pay/internal/repositories"
	"toko-pay/internal/services"
	"toko-pay/pkg/monobank"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testWebhookURL = "https://shop.example/api/v1/payments/monobank/webhook"

func validRequest(method string) services.CreateOrderRequest {
	return services.CreateOrderRequest{
		Name:      gofakeit.Name(),
		Phone:     gofakeit.Phone(),
		City:      gofakeit.City(),
		CityRef:   gofakeit.UUID(),
		Warehouse: "Branch #1",
		Items: []services.OrderItemRequest{
			{ID: 1, Name: "A", Price: decimal.NewFromInt(250), Quantity: 1},
		},
		TotalPrice:    lo.ToPtr(decimal.NewFromInt(250)),
		PaymentMethod: method,
	}
}

func isEvent(kind notify.Kind) any {
	return mock.MatchedBy(func(ev notify.Event) bool { return ev.Kind == kind })
}

type orderFixture struct {
	repo     *repositories.MemoryOrderRepository
	gateway  *MockGateway
	notifier *MockNotifier
	service  *services.OrderService
}

func newOrderFixture(store repositories.OrderRepository) *orderFixture {
	f := &orderFixture{
		repo:     repositories.NewMemoryOrderRepository(),
		gateway:  new(MockGateway),
		notifier: new(MockNotifier),
	}
	if store == nil {
		store = f.repo
	}
	f.service = services.NewOrderService(store, nil, f.gateway, f.notifier, services.OrderServiceConfig{
		WebhookURL:  testWebhookURL,
		Destination: "Tea shop order",
	})
	return f
}

func TestCreateOrder_CardSuccess(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(nil)

	f.notifier.On("Notify", mock.Anything, isEvent(notify.OrderCreated)).Return().Once()
	f.gateway.On("CreateInvoice", mock.Anything, monobank.InvoiceRequest{
		Amount:      25000,
		Reference:   "1",
		Destination: "Tea shop order #1",
		WebhookURL:  testWebhookURL,
	}).Return(monobank.Invoice{InvoiceID: "INV1", PageURL: "https://pay.example/INV1"}, nil).Once()

	res, err := f.service.CreateOrder(ctx, validRequest("card"))
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.OrderID)
	assert.Equal(t, "https://pay.example/INV1", res.PaymentURL)

	order, err := f.repo.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNew, order.Status)
	require.NotNil(t, order.InvoiceReference)
	assert.Equal(t, "INV1", *order.InvoiceReference)

	items, err := order.LineItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Name)

	f.gateway.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestCreateOrder_DefaultsToCard(t *testing.T) {
	f := newOrderFixture(nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return()
	f.gateway.On("CreateInvoice", mock.Anything, mock.Anything).
		Return(monobank.Invoice{InvoiceID: "INV9", PageURL: "https://pay.example/INV9"}, nil).Once()

	res, err := f.service.CreateOrder(context.Background(), validRequest(" "))
	require.NoError(t, err)
	assert.NotEmpty(t, res.PaymentURL)

	order, err := f.repo.GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, order.PaymentMethod)
}

func TestCreateOrder_Cash(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(nil)
	f.notifier.On("Notify", mock.Anything, isEvent(notify.OrderCreated)).Return().Once()

	res, err := f.service.CreateOrder(ctx, validRequest("cash"))
	require.NoError(t, err)
	assert.Empty(t, res.PaymentURL)

	order, err := f.repo.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, order.PaymentMethod)
	assert.Nil(t, order.InvoiceReference)

	f.gateway.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *services.CreateOrderRequest)
		wantField string
	}{
		{"missing name", func(r *services.CreateOrderRequest) { r.Name = "  " }, "name"},
		{"missing phone", func(r *services.CreateOrderRequest) { r.Phone = "" }, "phone"},
		{"missing city", func(r *services.CreateOrderRequest) { r.City = "" }, "city"},
		{"missing warehouse", func(r *services.CreateOrderRequest) { r.Warehouse = "" }, "warehouse"},
		{"no items", func(r *services.CreateOrderRequest) { r.Items = nil }, "items"},
		{"empty items", func(r *services.CreateOrderRequest) { r.Items = []services.OrderItemRequest{} }, "items"},
		{"zero quantity", func(r *services.CreateOrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"missing item id", func(r *services.CreateOrderRequest) { r.Items[0].ID = 0 }, "items[0].id"},
		{"negative item price", func(r *services.CreateOrderRequest) { r.Items[0].Price = decimal.NewFromInt(-1) }, "items[0].price"},
		{"negative total", func(r *services.CreateOrderRequest) { r.TotalPrice = lo.ToPtr(decimal.NewFromInt(-5)) }, "totalPrice"},
		{"missing total", func(r *services.CreateOrderRequest) { r.TotalPrice = nil }, "totalPrice"},
		{"unknown payment method", func(r *services.CreateOrderRequest) { r.PaymentMethod = "bitcoin" }, "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(nil)
			req := validRequest("card")
			tt.mutate(&req)

			res, err := f.service.CreateOrder(context.Background(), req)
			assert.Nil(t, res)

			var verr *services.ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.wantField)

			orders, err := f.repo.List(context.Background(), 10, 0)
			require.NoError(t, err)
			assert.Empty(t, orders)
			f.gateway.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
			f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	products := repositories.NewMemoryProductRepository()
	require.NoError(t, products.Create(ctx, &models.Product{ID: 1, Name: "A", Price: decimal.NewFromInt(250)}))

	orders := repositories.NewMemoryOrderRepository()
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return()
	svc := services.NewOrderService(orders, products, nil, notifier, services.OrderServiceConfig{})

	req := validRequest("cash")
	req.Items = append(req.Items, services.OrderItemRequest{ID: 2, Name: "B", Price: decimal.NewFromInt(10), Quantity: 1})

	_, err := svc.CreateOrder(ctx, req)
	var verr *services.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "unknown product", verr.Fields["items[1].id"])
	assert.NotContains(t, verr.Fields, "items[0].id")

	req.Items = req.Items[:1]
	_, err = svc.CreateOrder(ctx, req)
	assert.NoError(t, err)
}

// gateway timeout: the order exists with status New and no invoice reference.
func TestCreateOrder_GatewayTimeout(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(nil)
	f.notifier.On("Notify", mock.Anything, isEvent(notify.OrderCreated)).Return().Once()
	f.gateway.On("CreateInvoice", mock.Anything, mock.Anything).
		Return(monobank.Invoice{}, fmt.Errorf("%w: context deadline exceeded", monobank.ErrUnavailable)).Once()

	res, err := f.service.CreateOrder(ctx, validRequest("card"))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.PaymentURL)

	assert.ErrorIs(t, err, services.ErrPaymentNotStarted)
	assert.ErrorIs(t, err, monobank.ErrUnavailable)
	var gerr *services.GatewayUnavailableError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, res.OrderID, gerr.OrderID)

	order, err := f.repo.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNew, order.Status)
	assert.Nil(t, order.InvoiceReference)
}

func TestCreateOrder_NoGatewayConfigured(t *testing.T) {
	repo := repositories.NewMemoryOrderRepository()
	svc := services.NewOrderService(repo, nil, nil, nil, services.OrderServiceConfig{})

	res, err := svc.CreateOrder(context.Background(), validRequest("card"))
	require.NotNil(t, res)
	assert.ErrorIs(t, err, services.ErrPaymentNotStarted)
}

func TestCreateOrder_AttachFailureWithholdsPayURL(t *testing.T) {
	store := &failingOrderRepository{OrderRepository: repositories.NewMemoryOrderRepository(), failAttach: true}
	f := newOrderFixture(store)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return()
	f.gateway.On("CreateInvoice", mock.Anything, mock.Anything).
		Return(monobank.Invoice{InvoiceID: "INV2", PageURL: "https://pay.example/INV2"}, nil).Once()

	res, err := f.service.CreateOrder(context.Background(), validRequest("card"))
	require.NotNil(t, res)
	assert.Empty(t, res.PaymentURL)
	assert.ErrorIs(t, err, services.ErrPaymentNotStarted)

	var storeErr *repositories.StoreError
	assert.True(t, errors.As(err, &storeErr))
}

func TestCreateOrder_StoreFailure(t *testing.T) {
	store := &failingOrderRepository{OrderRepository: repositories.NewMemoryOrderRepository(), failCreate: true}
	f := newOrderFixture(store)

	res, err := f.service.CreateOrder(context.Background(), validRequest("card"))
	assert.Nil(t, res)

	var storeErr *repositories.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.False(t, errors.Is(err, services.ErrPaymentNotStarted))
	f.gateway.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestListOrders_Paging(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return()
	for i := 0; i < 3; i++ {
		_, err := f.service.CreateOrder(ctx, validRequest("cash"))
		require.NoError(t, err)
	}

	all, err := f.service.ListOrders(ctx, 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint(3), all[0].ID)

	page, err := f.service.ListOrders(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint(2), page[0].ID)

	_, err = f.service.GetOrder(ctx, 99)
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"250", 25000},
		{"19.99", 1999},
		{"0.015", 2},
		{"10.005", 1001},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, services.MinorUnits(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestCreateOrderRequest_DecodesClientPayload(t *testing.T) {
	raw := `{
		"name": "Olena", "phone": "+380501112233",
		"city": "Kyiv", "cityRef": "c-1", "warehouse": "Branch #5", "warehouseRef": "w-5",
		"items": [
			{"id": 1, "name": "Tea", "price": 120.5, "quantity": 2, "packSize": 100},
			{"id": 2, "name": "Honey", "price": "300", "quantity": 1, "packSize": "250g"},
			{"id": 3, "name": "Cup", "price": 50, "quantity": 1, "packSize": null}
		],
		"totalPrice": 591,
		"payment_method": "cash"
	}`

	var req services.CreateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, "c-1", req.CityRef)
	assert.Equal(t, "w-5", req.WarehouseRef)
	require.Len(t, req.Items, 3)
	assert.Equal(t, services.PackSize("100"), req.Items[0].PackSize)
	assert.Equal(t, services.PackSize("250g"), req.Items[1].PackSize)
	assert.Equal(t, services.PackSize(""), req.Items[2].PackSize)
	assert.True(t, req.Items[0].Price.Equal(decimal.RequireFromString("120.5")))
	require.NotNil(t, req.TotalPrice)
	assert.True(t, req.TotalPrice.Equal(decimal.NewFromInt(591)))

	var bad services.CreateOrderRequest
	assert.Error(t, json.Unmarshal([]byte(`{"items":[{"packSize":{"x":1}}]}`), &bad))
}
