package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	config "github.com/netkrida/myhome-sub004/configs"
	"github.com/netkrida/myhome-sub004/database"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/handlers"
	"github.com/netkrida/myhome-sub004/jobs"
	"github.com/netkrida/myhome-sub004/messaging"
	"github.com/netkrida/myhome-sub004/notifications"
	"github.com/netkrida/myhome-sub004/payments"
	"github.com/netkrida/myhome-sub004/routes"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/netkrida/myhome-sub004/websocket"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" || cfg.GatewayServerKey == "" {
		log.Fatal("🔥 JWT_SECRET and MIDTRANS_SERVER_KEY must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.ConnectDB(cfg.DatabaseURL)
	if err := database.Migrate(db); err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if config.Config("SEED_DEMO") == "true" {
		database.SeedDemo(db)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)
	sinks := events.Fanout{hub}

	var publisher *messaging.Publisher
	if cfg.RabbitURL != "" {
		p, err := messaging.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Printf("⚠️ RabbitMQ unavailable, events stay in-process: %v", err)
		} else {
			publisher = p
			defer publisher.Close()
			sinks = append(sinks, messaging.NewEventSink(publisher))
			log.Println("✅ Connected to RabbitMQ")
		}
	}

	if mailer := notifications.NewBrevoService(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName); mailer != nil {
		sinks = append(sinks, notifications.NewEmailSink(mailer, notifications.GormDirectory{DB: db}))
		log.Println("✅ Email notifications enabled")
	}

	gateway := payments.NewSnapClient(cfg.GatewayServerKey, cfg.GatewaySnapURL, cfg.GatewayAPIURL, cfg.GatewayTimeout)

	bookingService := services.NewBookingService(db, sinks, time.Now)
	paymentService := services.NewPaymentService(db, gateway, sinks, services.PaymentConfig{
		ServerKey:         cfg.GatewayServerKey,
		DepositPercentage: cfg.DepositPercentage,
		PaymentWindow:     cfg.PaymentWindow,
		Timezone:          cfg.Timezone,
	}, time.Now)
	extensionService := services.NewExtensionService(db, paymentService, cfg.DepositPercentage)
	ledgerService := services.NewLedgerService(db)
	payoutService := services.NewPayoutService(db, sinks, time.Now)

	var storage services.FileStorage
	if cfg.CloudinaryURL != "" {
		cld, err := services.NewCloudinaryStorage(cfg.CloudinaryURL)
		if err != nil {
			log.Printf("⚠️ Cloudinary disabled: %v", err)
		} else {
			storage = cld
		}
	}
	receiptService := services.NewReceiptService(paymentService, services.ChromePDFRenderer{Timeout: 30 * time.Second}, storage, cfg.Timezone)

	var retrier handlers.NotificationRetrier
	if publisher != nil {
		consumer, err := messaging.NewRetryConsumer(publisher.Connection(), paymentService, publisher)
		if err != nil {
			log.Printf("⚠️ Notification retry consumer disabled: %v", err)
		} else {
			// Retries are only queued once the delay and retry queues exist.
			retrier = publisher
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Printf("🔥 Retry consumer stopped: %v", err)
				}
			}()
		}
	}

	sweeper := jobs.NewSweeper(jobs.GormFinder{DB: db}, paymentService, bookingService, cfg.PaymentWindow, cfg.CompletionGrace)
	c := cron.New(cron.WithLocation(cfg.Timezone))
	if err := jobs.Schedule(ctx, c, jobs.DefaultSchedule, sweeper); err != nil {
		log.Fatalf("🔥 Failed to schedule jobs: %v", err)
	}
	c.Start()
	defer c.Stop()
	log.Println("✅ Expiry and completion jobs scheduled successfully.")

	app := fiber.New(fiber.Config{
		AppName:       "MyHome",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  60 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  handlers.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Disposition, X-Request-ID, X-Receipt-URL",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   cfg.Timezone.String(),
		Format:     "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	routes.BookingRoutes(app, handlers.NewBookingHandler(bookingService, extensionService), cfg.JWTSecret)
	routes.PaymentRoutes(app, handlers.NewPaymentHandler(paymentService, receiptService, retrier), cfg.JWTSecret)
	routes.PayoutRoutes(app, handlers.NewPayoutHandler(payoutService, ledgerService), cfg.JWTSecret)
	routes.UploadRoutes(app, handlers.NewUploadHandler(storage), cfg.JWTSecret)
	routes.WebSocketRoutes(app, hub, bookingService, cfg.JWTSecret)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("🔥 Shutdown error: %v", err)
		}
	}()

	log.Printf("✅ Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
