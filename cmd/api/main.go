package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/fitlook/virtual-tryon-be/internal/core/auth"
	"github.com/fitlook/virtual-tryon-be/internal/core/catalog"
	"github.com/fitlook/virtual-tryon-be/internal/core/fitting"
	"github.com/fitlook/virtual-tryon-be/internal/core/payment"
	"github.com/fitlook/virtual-tryon-be/internal/core/retention"
	"github.com/fitlook/virtual-tryon-be/internal/core/upload"
	"github.com/fitlook/virtual-tryon-be/internal/handlers"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/fitlook/virtual-tryon-be/internal/shared/config"
	"github.com/fitlook/virtual-tryon-be/internal/shared/database"
	"github.com/fitlook/virtual-tryon-be/internal/shared/utils"
)

// @title Virtual Try-On API
// @version 1.0
// @description Credit-based virtual fitting backend
// @host localhost:8080
// @BasePath /
func main() {
	// Load config
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)
	log.Printf("🚀 Starting virtual-tryon api on port %s", cfg.Port)

	// Init database
	db := database.NewDB(cfg.DatabaseURL, cfg.Env == "development")
	defer database.Close(db)

	// Init repositories
	creditRepo := repositories.NewCreditRepo(db)
	cartRepo := repositories.NewCartRepo(db)
	orderRepo := repositories.NewOrderRepo(db)
	packageRepo := repositories.NewPackageRepo(db)
	activityRepo := repositories.NewActivityRepo(db)

	// Init storage provider
	storage, err := upload.NewProvider(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage provider: %v", err)
	}
	log.Printf("📦 Using storage provider: %s", storage.GetProviderName())

	// Init fitting provider
	fittingProvider, err := fitting.NewProvider(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize fitting provider: %v", err)
	}
	log.Printf("🧥 Using fitting provider: %s", fittingProvider.GetProviderName())

	// Photo screening is optional
	screener := fitting.NewScreener(cfg.OpenAIKey)
	if screener != nil {
		log.Println("🔍 Photo screening enabled")
	}

	// Init payment gateway
	gateway, err := payment.NewGateway(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize payment gateway: %v", err)
	}

	// Init catalog client
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogAPIKey)

	// Init services
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.DownloadTokenTTL)
	creditService := services.NewCreditService(creditRepo, cfg.FreeCredits)
	checkoutService := services.NewCheckoutService(
		cartRepo, orderRepo, packageRepo, activityRepo,
		creditService, gateway, cfg.PaymentReturnURL, cfg.CheckoutCurrency,
	)
	fittingService := services.NewFittingService(
		storage, fittingProvider, screener, catalogClient,
		creditService, activityRepo,
		cfg.FittingTimeout, cfg.FittingMaxRetries, cfg.FittingCategories,
	)

	// Init handlers
	creditHandler := handlers.NewCreditHandler(creditService)
	uploadHandler := handlers.NewUploadHandler(fittingService)
	fittingHandler := handlers.NewFittingHandler(fittingService, jwtService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, packageRepo)
	webhookHandler := handlers.NewWebhookHandler(checkoutService)
	adminHandler := handlers.NewAdminHandler(activityRepo, creditService)

	// Start retention jobs
	scheduler := retention.NewScheduler(activityRepo, cartRepo, storage,
		cfg.ActivityRetentionDays, cfg.ResultRetentionHours)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start retention scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadSize) + 1024*1024,
	})
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public routes
	app.Get("/api/packages", checkoutHandler.ListPackages)
	app.Get("/api/fittings/results/:name", fittingHandler.DownloadResult)
	app.Post("/api/webhooks/payment", webhookHandler.ReceivePayment)

	// Authenticated routes
	api := app.Group("/api", auth.Middleware(jwtService))
	api.Get("/credits", creditHandler.GetBalance)
	api.Get("/credits/history", creditHandler.GetHistory)
	api.Post("/uploads/photo", uploadHandler.UploadPhoto)
	api.Post("/fittings", fittingHandler.RequestFitting)
	api.Post("/checkout/cart", checkoutHandler.EnsureCart)
	api.Post("/checkout/cart/resolve", checkoutHandler.ResolveCart)
	api.Delete("/checkout/cart", checkoutHandler.ClearCart)
	api.Get("/checkout/orders/:id", checkoutHandler.GetOrder)
	api.Post("/checkout", checkoutHandler.Checkout)
	api.Post("/checkout/express", checkoutHandler.ExpressCheckout)

	// Admin routes
	admin := api.Group("/admin", auth.RequireAdmin())
	admin.Get("/activity", adminHandler.ListActivity)
	admin.Post("/credits/adjust", adminHandler.AdjustCredits)

	log.Fatal(app.Listen(":" + cfg.Port))
}
