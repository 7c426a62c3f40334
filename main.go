package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repositories"
	"storefront/internal/server"
	"storefront/internal/services"
	"storefront/internal/worker"
	"storefront/pkg/kafka"
	"storefront/pkg/rabbitmq"
)

const notificationQueue = "storefront.notifications"

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Database ---
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Event broker and notifications ---
	broker, err := connectBroker(ctx, cfg.Events)
	if err != nil {
		log.Fatalf("Failed to initialize event broker: %v", err)
	}
	defer broker.close()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Services ---
	app := buildApp(cfg, db, newGateway(cfg), broker.publisher, broker.notifier, reg)

	if cfg.Admin.Username != "" {
		if err := app.auth.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Printf("Warning: could not seed admin account: %v", err)
		}
	}

	// --- Background workers ---
	sweeper := worker.NewPendingSweeper(app.orderRepo, app.checkout, cfg.Sweeper.Interval, cfg.Sweeper.MaxAge)
	go sweeper.Run(ctx)

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.http.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.http.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	stop()
	// Let in-flight payment confirmations finish before the broker closes.
	app.checkout.Wait()

	log.Println("Server gracefully stopped")
}

// application bundles what main needs after wiring.
type application struct {
	http      *fiber.App
	auth      *services.AuthService
	checkout  *services.CheckoutService
	orderRepo repositories.OrderRepository
}

// buildApp wires repositories, services and routes on top of db.
func buildApp(cfg *config.Config, db *gorm.DB, gateway payment.Gateway, publisher events.Publisher, notifier notify.Mailer, reg *prometheus.Registry) *application {
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	couponRepo := repositories.NewGORMCouponRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)

	m := metrics.New(reg)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret,
		services.WithAccountMailer(notifier),
		services.WithRequiredEmailVerification(cfg.Auth.RequireVerifiedEmail),
	)
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	orderService := services.NewOrderService(orderRepo)
	couponService := services.NewCouponService(couponRepo, services.CouponConfig{
		DiscountPercentage: cfg.Checkout.RewardDiscountPercent,
		Validity:           cfg.Checkout.CouponValidity,
	})
	checkoutService := services.NewCheckoutService(services.CheckoutDeps{
		Orders:    orderRepo,
		Products:  productRepo,
		Coupons:   couponService,
		Gateway:   gateway,
		Publisher: publisher,
		Notifier:  notifier,
		Metrics:   m,
	}, services.CheckoutConfig{
		Currency:        cfg.Checkout.Currency,
		TxRefPrefix:     cfg.Checkout.TxRefPrefix,
		RewardThreshold: decimal.NewFromFloat(cfg.Checkout.RewardThreshold),
		CallbackURL:     cfg.Chapa.CallbackURL,
		ReturnURL:       cfg.ClientURL + "/purchase-success",
		GatewayTimeout:  cfg.Chapa.Timeout,
	})

	httpApp := server.NewApp(server.Deps{
		DB:          db,
		Auth:        authService,
		Products:    productService,
		Orders:      orderService,
		Coupons:     couponService,
		Checkout:    checkoutService,
		Cart:        cartService,
		Metrics:     m,
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
	})

	return &application{
		http:      httpApp,
		auth:      authService,
		checkout:  checkoutService,
		orderRepo: orderRepo,
	}
}

// newGateway returns the configured payment gateway. The in-memory gateway
// is only used when PAYMENT_GATEWAY=mock asks for it.
func newGateway(cfg *config.Config) payment.Gateway {
	if cfg.Chapa.Gateway == config.GatewayMock {
		log.Println("Warning: PAYMENT_GATEWAY=mock, every payment will verify as successful")
		return payment.NewMockGateway(cfg.ClientURL)
	}
	return payment.NewChapaGateway(payment.ChapaConfig{
		BaseURL:   cfg.Chapa.BaseURL,
		SecretKey: cfg.Chapa.SecretKey,
		Timeout:   cfg.Chapa.Timeout,
	})
}

type brokerConn struct {
	publisher events.Publisher
	notifier  notify.Mailer
	close     func()
}

// connectBroker sets up event publishing and starts the notification
// consumer on the configured broker. Without a broker, notifications go
// straight to the log mailer.
func connectBroker(ctx context.Context, cfg config.EventsConfig) (*brokerConn, error) {
	consumer := notify.NewConsumer(notify.LogMailer{})

	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			return nil, err
		}
		handler := func(msg amqp.Delivery) error {
			return consumer.Handle(ctx, msg.Body)
		}
		if err := mqClient.Consume(ctx, notificationQueue, events.NotificationTypes, handler); err != nil {
			mqClient.Close()
			return nil, err
		}
		publisher := events.NewRabbitPublisher(mqClient)
		return &brokerConn{
			publisher: publisher,
			notifier:  notify.NewQueueDispatcher(publisher),
			close: func() {
				if err := mqClient.Close(); err != nil {
					log.Printf("Error closing RabbitMQ client: %v", err)
				}
			},
		}, nil

	case config.BrokerKafka:
		client := kafka.NewClient(cfg.KafkaBrokers)
		writer, err := client.NewWriter(cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka writer: %w", err)
		}
		reader, err := client.NewReader(cfg.KafkaTopic, notificationQueue)
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to create kafka reader: %w", err)
		}
		go notify.ConsumeKafka(ctx, reader, consumer)
		publisher := events.NewKafkaPublisher(writer)
		return &brokerConn{
			publisher: publisher,
			notifier:  notify.NewQueueDispatcher(publisher),
			close: func() {
				if err := writer.Close(); err != nil {
					log.Printf("Error closing kafka writer: %v", err)
				}
				if err := reader.Close(); err != nil {
					log.Printf("Error closing kafka reader: %v", err)
				}
			},
		}, nil

	default:
		return &brokerConn{
			publisher: events.NopPublisher{},
			notifier:  notify.LogMailer{},
			close:     func() {},
		}, nil
	}
}
