package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/viper"

	"toko-pay/internal/config"
	"toko-pay/internal/handlers"
	"toko-pay/internal/middleware"
	"toko-pay/internal/notify"
	"toko-pay/internal/repositories"
	"toko-pay/internal/services"
	"toko-pay/pkg/monobank"
	"toko-pay/pkg/rabbitmq"
	"toko-pay/pkg/telegram"
)

// App is the wired HTTP application together with the resources it owns.
type App struct {
	Fiber      *fiber.App
	Orders     *services.OrderService
	Reconciler *services.ReconcileService
	Auth       *services.AuthService // nil when the admin API is disabled

	closers []func() error
}

// Close releases the database and broker connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type stores struct {
	orders    repositories.OrderRepository
	products  repositories.ProductRepository
	operators repositories.OperatorRepository
}

func openStores(cfg config.Config) (stores, func() error, error) {
	if cfg.DatabaseDriver == "memory" {
		log.Println("Using in-memory stores, data is lost on restart")
		return stores{
			orders:    repositories.NewMemoryOrderRepository(),
			products:  repositories.NewMemoryProductRepository(),
			operators: repositories.NewMemoryOperatorRepository(),
		}, func() error { return nil }, nil
	}

	db, err := repositories.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return stores{}, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return stores{}, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	log.Printf("Connected to %s database", cfg.DatabaseDriver)
	return stores{
		orders:    repositories.NewGORMOrderRepository(db),
		products:  repositories.NewGORMProductRepository(db),
		operators: repositories.NewGORMOperatorRepository(db),
	}, sqlDB.Close, nil
}

// NewApp wires repositories, clients, services and handlers from cfg.
func NewApp(cfg config.Config) (*App, error) {
	a := &App{}

	st, closeDB, err := openStores(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDB)

	// --- Broker (optional) ---
	var (
		publisher notify.Publisher
		deferrer  services.CallbackDeferrer
		mqClient  *rabbitmq.Client
	)
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, RetryDelay: cfg.CallbackRetryDelay})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		a.closers = append(a.closers, mqClient.Close)
		publisher = mqClient
		deferrer = mqClient
	} else {
		log.Println("RABBITMQ_URL not set, order events are not published and failed confirmations are not retried")
	}

	// --- Outbound clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	gateway, err := monobank.NewClient(monobank.Config{
		BaseURL:     cfg.MonobankBaseURL,
		Token:       cfg.MonobankToken,
		Currency:    cfg.Currency,
		RedirectURL: cfg.PaymentRedirectURL,
	}, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.MonobankToken == "" {
		log.Println("Warning: MONOBANK_API_TOKEN not set, card orders will not get a payment link")
	}

	var sender notify.Sender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sender = telegram.NewClient(telegram.Config{
			BaseURL:  cfg.TelegramBaseURL,
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
		}, httpClient)
	} else {
		log.Println("Telegram bot token or chat id not set, operator messages are disabled")
	}
	dispatcher := notify.NewDispatcher(sender, publisher, cfg.Currency, cfg.NotifyTimeout)

	// --- Services ---
	var productRepo repositories.ProductRepository
	if cfg.CheckProducts {
		productRepo = st.products
	}
	webhookURL := cfg.WebhookURL()
	if webhookURL == "" {
		log.Println("Warning: neither MONOBANK_WEBHOOK_URL nor PUBLIC_BASE_URL is set, payments will not be confirmed")
	}
	a.Orders = services.NewOrderService(st.orders, productRepo, gateway, dispatcher, services.OrderServiceConfig{
		WebhookURL:  webhookURL,
		Destination: cfg.PaymentDestination,
	})
	a.Reconciler = services.NewReconcileService(st.orders, dispatcher, deferrer, cfg.CallbackMaxAttempts)

	if cfg.JWTSecret != "" {
		a.Auth = services.NewAuthService(st.operators, cfg.JWTSecret)
		if cfg.AdminUsername != "" {
			if err := a.Auth.EnsureOperator(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to seed operator: %w", err)
			}
		}
	} else {
		log.Println("JWT_SECRET not set, admin API is disabled")
	}

	if mqClient != nil {
		err := mqClient.ConsumeCallbacks(func(ctx context.Context, payload []byte, attempt int) {
			outcome := a.Reconciler.Redeliver(ctx, payload, attempt)
			log.Printf("Redelivered callback (attempt %d): %s", attempt, outcome)
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	// --- Handlers ---
	orderHandler := handlers.NewOrderHandler(a.Orders)
	webhookHandler := handlers.NewWebhookHandler(a.Reconciler)

	app := fiber.New(fiber.Config{AppName: "toko-pay"})
	app.Use(recover.New())
	app.Use(logger.New())

	apiV1 := app.Group("/api/v1")
	orderHandler.RegisterRoutes(apiV1)
	webhookHandler.RegisterRoutes(apiV1)
	if a.Auth != nil {
		handlers.NewAuthHandler(a.Auth).RegisterRoutes(apiV1)
		admin := apiV1.Group("/admin", middleware.OperatorRequired(a.Auth))
		orderHandler.RegisterAdminRoutes(admin)
	}

	// paths used by the existing storefront and the merchant cabinet
	app.Post("/create_order", orderHandler.HandleCreateOrder)
	app.Post("/monobank-webhook", webhookHandler.HandleMonobankWebhook)

	brokerState := "disabled"
	if mqClient != nil {
		brokerState = "connected"
	}
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"rabbitmq": brokerState,
		})
	})

	a.Fiber = app
	return a, nil
}

func main() {
	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	if err := app.Close(); err != nil {
		log.Printf("Error releasing resources: %v", err)
	}
	log.Println("Server gracefully stopped")
}
