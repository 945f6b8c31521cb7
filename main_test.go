package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"toko-pay/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig() config.Config {
	return config.Config{
		AppPort:             ":0",
		DatabaseDriver:      "memory",
		Currency:            "UAH",
		CallbackMaxAttempts: 3,
		CallbackRetryDelay:  time.Second,
		HTTPClientTimeout:   time.Second,
		NotifyTimeout:       time.Second,
		JWTSecret:           "test_jwt_secret",
		AdminUsername:       "admin",
		AdminPassword:       "s3cret",
	}
}

func TestNewApp_HealthAndRoutes(t *testing.T) {
	app, err := NewApp(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "disabled", health["rabbitmq"])

	resp, err = app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/monobank-webhook", strings.NewReader(`{"invoiceId":"x","status":"success"}`))
	resp, err = app.Fiber.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewApp_CashOrderWithoutExternalServices(t *testing.T) {
	app, err := NewApp(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	body := `{"name":"Ivan","phone":"+380671234567","city":"Lviv","warehouse":"Branch #2",
		"items":[{"id":1,"name":"Tea","price":90,"quantity":1}],"totalPrice":90,"payment_method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/create_order", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// card orders still get an order id when no gateway token is configured
	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(strings.Replace(body, `"cash"`, `"card"`, 1)))
	req.Header.Set("Content-Type", "application/json")
	resp2, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp2.StatusCode)

	orders, err := app.Orders.ListOrders(req.Context(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestNewApp_SQLiteAndDisabledAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDriver = "sqlite"
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "shop.db")
	cfg.JWTSecret = ""
	cfg.AdminUsername = ""

	app, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	assert.Nil(t, app.Auth)

	resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`)), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewApp_InvalidSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Currency = "JPY"
	_, err := NewApp(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.DatabaseDriver = "sqlite"
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "missing-dir", "shop.db")
	_, err = NewApp(cfg)
	assert.Error(t, err, fmt.Sprintf("dsn %s should not open", cfg.DatabaseDSN))
}
