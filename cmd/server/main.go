package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/praxis/backend/internal/application/billing"
	chatapp "github.com/praxis/backend/internal/application/chat"
	documentapp "github.com/praxis/backend/internal/application/document"
	identityapp "github.com/praxis/backend/internal/application/identity"
	matterapp "github.com/praxis/backend/internal/application/matter"
	notificationapp "github.com/praxis/backend/internal/application/notification"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/auth"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"github.com/praxis/backend/internal/infrastructure/cache"
	"github.com/praxis/backend/internal/infrastructure/config"
	"github.com/praxis/backend/internal/infrastructure/event"
	"github.com/praxis/backend/internal/infrastructure/logger"
	"github.com/praxis/backend/internal/infrastructure/persistence"
	"github.com/praxis/backend/internal/infrastructure/scheduler"
	"github.com/praxis/backend/internal/infrastructure/storage"
	"github.com/praxis/backend/internal/interfaces/http/handler"
	"github.com/praxis/backend/internal/interfaces/http/middleware"
	"github.com/praxis/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Praxis Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	practiceRepo := persistence.NewGormPracticeRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	matterRepo := persistence.NewGormMatterRepository(db.DB)
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	folderRepo := persistence.NewGormFolderRepository(db.DB)
	conversationRepo := persistence.NewGormConversationRepository(db.DB)
	messageRepo := persistence.NewGormMessageRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)

	// Idempotency store: Redis in production, in-memory fallback elsewhere
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize event bus and notification fan-out
	eventBus := event.NewInMemoryEventBus(log)

	billingNotifications := notificationapp.NewBillingNotificationHandler(notificationRepo, userRepo, log)
	matterNotifications := notificationapp.NewMatterNotificationHandler(notificationRepo, userRepo, log)
	chatNotifications := notificationapp.NewChatNotificationHandler(notificationRepo, userRepo, log)
	idempotencyCfg := shared.DefaultIdempotencyConfig()
	if cfg.Event.IdempotencyTTL > 0 {
		idempotencyCfg.TTL = cfg.Event.IdempotencyTTL
	}
	handlers := []shared.EventHandler{billingNotifications, matterNotifications, chatNotifications}
	wrapped := event.WrapHandlersWithIdempotency(
		handlers,
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(idempotencyCfg),
	)
	for i, h := range wrapped {
		eventBus.Subscribe(h, handlers[i].EventTypes()...)
	}
	log.Info("Event handlers registered",
		zap.Strings("billing_notification_events", billingNotifications.EventTypes()),
		zap.Strings("matter_notification_events", matterNotifications.EventTypes()),
		zap.Strings("chat_notification_events", chatNotifications.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Stripe configuration and payment processor
	stripeCfg := infrabilling.NewStripeConfig(cfg.Stripe)
	if err := stripeCfg.Validate(); err != nil {
		log.Fatal("Invalid Stripe configuration", zap.Error(err))
	}
	stripeCfg.InitStripeClient()
	processor, err := infrabilling.NewStripeAdapter(stripeCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe adapter", zap.Error(err))
	}

	// Identity infrastructure
	jwtService := auth.NewJWTService(cfg.JWT)

	// Object storage for documents
	objectStorage, err := storage.NewObjectStorage(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Initialize application services
	authService := identityapp.NewAuthService(userRepo, practiceRepo, jwtService, log)
	practiceService := identityapp.NewPracticeService(identityapp.PracticeServiceConfig{
		PracticeRepo:     practiceRepo,
		UserRepo:         userRepo,
		SubscriptionRepo: subscriptionRepo,
		EventBus:         eventBus,
		TrialDays:        cfg.Stripe.TrialDays,
		Logger:           log,
	})
	userService := identityapp.NewUserService(userRepo, practiceRepo, eventBus, log)
	clientService := identityapp.NewClientService(clientRepo, practiceRepo, processor, log)
	invoiceService := billingapp.NewInvoiceService(billingapp.InvoiceServiceConfig{
		InvoiceRepo:  invoiceRepo,
		PracticeRepo: practiceRepo,
		ClientRepo:   clientRepo,
		MatterRepo:   matterRepo,
		Processor:    processor,
		EventBus:     eventBus,
		Logger:       log,
	})
	subscriptionService := billingapp.NewSubscriptionService(billingapp.SubscriptionServiceConfig{
		SubscriptionRepo: subscriptionRepo,
		PracticeRepo:     practiceRepo,
		Processor:        processor,
		Config:           stripeCfg,
		EventBus:         eventBus,
		Logger:           log,
	})
	webhookService := billingapp.NewStripeWebhookService(billingapp.StripeWebhookServiceConfig{
		Config:           stripeCfg,
		InvoiceRepo:      invoiceRepo,
		SubscriptionRepo: subscriptionRepo,
		PracticeRepo:     practiceRepo,
		Idempotency:      idempotencyStore,
		IdempotencyTTL:   cfg.Event.IdempotencyTTL,
		EventBus:         eventBus,
		Logger:           log,
	})
	matterService := matterapp.NewMatterService(matterapp.MatterServiceConfig{
		MatterRepo:  matterRepo,
		ClientRepo:  clientRepo,
		UserRepo:    userRepo,
		InvoiceRepo: invoiceRepo,
		EventBus:    eventBus,
		Logger:      log,
	})
	documentService := documentapp.NewDocumentService(documentapp.DocumentServiceConfig{
		DocumentRepo: documentRepo,
		FolderRepo:   folderRepo,
		MatterRepo:   matterRepo,
		Storage:      objectStorage,
		URLTTL:       cfg.Storage.PresignExpiry,
		Logger:       log,
	})
	chatService := chatapp.NewChatService(chatapp.ChatServiceConfig{
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		MatterRepo:       matterRepo,
		EventBus:         eventBus,
		Logger:           log,
	})
	notificationService := notificationapp.NewNotificationService(notificationRepo, log)

	// Overdue invoice sweep (if enabled)
	if cfg.Scheduler.Enabled {
		executor := scheduler.NewOverdueSweepExecutor(invoiceRepo, eventBus, cfg.Scheduler.OverdueSweepBatch, log)
		sched := scheduler.NewScheduler(cfg.Scheduler, executor, log)
		if err := sched.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := sched.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		if cfg.Scheduler.OverdueSweepEnabled {
			trigger := scheduler.NewOverdueSweepTrigger(cfg.Scheduler, sched, log)
			if err := trigger.Start(context.Background()); err != nil {
				log.Fatal("Failed to start overdue sweep trigger", zap.Error(err))
			}
			defer func() {
				if err := trigger.Stop(context.Background()); err != nil {
					log.Error("Error stopping overdue sweep trigger", zap.Error(err))
				}
			}()
			log.Info("Overdue invoice sweep scheduled",
				zap.Duration("every", cfg.Scheduler.OverdueSweepEvery),
				zap.Int("batch", cfg.Scheduler.OverdueSweepBatch),
			)
		}
	}

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(authService)
	practiceHandler := handler.NewPracticeHandler(practiceService)
	userHandler := handler.NewUserHandler(userService)
	clientHandler := handler.NewClientHandler(clientService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
	webhookHandler := handler.NewStripeWebhookHandler(webhookService)
	matterHandler := handler.NewMatterHandler(matterService)
	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(chatService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Report validation failures using json field names
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	var authLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		// Login and refresh get a much tighter per-IP budget
		authLimiter = middleware.NewRateLimiter(10, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes.
	// Webhooks authenticate via Stripe signature, not JWT.
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/practices/register",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		SkipPathPrefixes: []string{
			"/api/v1/webhooks",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Identity domain - authentication
	authRoutes := router.NewDomainGroup("auth", "/auth")
	if authLimiter != nil {
		authRoutes.POST("/login", middleware.AuthRateLimit(authLimiter), authHandler.Login)
		authRoutes.POST("/refresh", middleware.AuthRateLimit(authLimiter), authHandler.RefreshToken)
	} else {
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.RefreshToken)
	}
	authRoutes.GET("/me", authHandler.GetCurrentUser)
	authRoutes.PUT("/password", authHandler.ChangePassword)

	// Identity domain - practice lifecycle
	practiceRoutes := router.NewDomainGroup("practices", "/practices")
	practiceRoutes.POST("/register", practiceHandler.Register)
	practiceRoutes.GET("", practiceHandler.Get)
	practiceRoutes.PUT("", practiceHandler.Update)
	practiceRoutes.PUT("/settings", practiceHandler.UpdateSettings)
	practiceRoutes.POST("/stripe-account", middleware.RequireBillingManager(), practiceHandler.ConnectStripeAccount)
	practiceRoutes.DELETE("", middleware.RequireRole(identity.UserRoleOwner), practiceHandler.Deactivate)

	// Identity domain - user management (writes are owner-only)
	userRoutes := router.NewDomainGroup("users", "/users")
	userRoutes.GET("", userHandler.List)
	userRoutes.GET("/:id", userHandler.Get)
	userRoutes.POST("", middleware.RequireRole(identity.UserRoleOwner), userHandler.Create)
	userRoutes.PUT("/:id", middleware.RequireRole(identity.UserRoleOwner), userHandler.Update)
	userRoutes.POST("/:id/activate", middleware.RequireRole(identity.UserRoleOwner), userHandler.Activate)
	userRoutes.POST("/:id/deactivate", middleware.RequireRole(identity.UserRoleOwner), userHandler.Deactivate)
	userRoutes.POST("/:id/reset-password", middleware.RequireRole(identity.UserRoleOwner), userHandler.ResetPassword)

	// Identity domain - clients
	clientRoutes := router.NewDomainGroup("clients", "/clients")
	clientRoutes.POST("", clientHandler.Create)
	clientRoutes.GET("", clientHandler.List)
	clientRoutes.GET("/:id", clientHandler.Get)
	clientRoutes.PUT("/:id", clientHandler.Update)
	clientRoutes.POST("/:id/archive", clientHandler.Archive)
	clientRoutes.POST("/:id/unarchive", clientHandler.Unarchive)
	clientRoutes.POST("/:id/stripe-customer", clientHandler.EnsureStripeCustomer)

	// Billing domain - invoices
	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices")
	invoiceRoutes.POST("", invoiceHandler.Create)
	invoiceRoutes.GET("", invoiceHandler.List)
	invoiceRoutes.GET("/summary", invoiceHandler.Summary)
	invoiceRoutes.GET("/:id", invoiceHandler.Get)
	invoiceRoutes.POST("/:id/items", invoiceHandler.AddLineItem)
	invoiceRoutes.DELETE("/:id/items/:itemId", invoiceHandler.RemoveLineItem)
	invoiceRoutes.POST("/:id/finalize", invoiceHandler.Finalize)
	invoiceRoutes.POST("/:id/payments", invoiceHandler.RecordPayment)
	invoiceRoutes.POST("/:id/void", invoiceHandler.Void)
	invoiceRoutes.POST("/:id/write-off", invoiceHandler.WriteOff)
	invoiceRoutes.PUT("/:id/due-date", invoiceHandler.UpdateDueDate)

	// Billing domain - practice subscription (owner only)
	subscriptionRoutes := router.NewDomainGroup("subscription", "/subscription")
	subscriptionRoutes.Use(middleware.RequireBillingManager())
	subscriptionRoutes.GET("", subscriptionHandler.Get)
	subscriptionRoutes.POST("", subscriptionHandler.Subscribe)
	subscriptionRoutes.PUT("/plan", subscriptionHandler.ChangePlan)
	subscriptionRoutes.POST("/cancel", subscriptionHandler.Cancel)
	subscriptionRoutes.POST("/resume", subscriptionHandler.Resume)
	subscriptionRoutes.POST("/refresh", subscriptionHandler.Refresh)

	// Billing domain - Stripe webhooks (signature-authenticated)
	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks")
	webhookRoutes.POST("/stripe", webhookHandler.HandleStripeWebhook)

	// Matter domain
	matterRoutes := router.NewDomainGroup("matters", "/matters")
	matterRoutes.POST("", matterHandler.Create)
	matterRoutes.GET("", matterHandler.List)
	matterRoutes.GET("/:id", matterHandler.Get)
	matterRoutes.POST("/:id/mediator", matterHandler.AssignMediator)
	matterRoutes.POST("/:id/open", matterHandler.Open)
	matterRoutes.POST("/:id/sessions", matterHandler.ScheduleSession)
	matterRoutes.POST("/:id/sessions/:sessionId/held", matterHandler.RecordSessionHeld)
	matterRoutes.POST("/:id/settle", matterHandler.Settle)
	matterRoutes.POST("/:id/impasse", matterHandler.DeclareImpasse)
	matterRoutes.POST("/:id/close", matterHandler.Close)
	matterRoutes.GET("/:id/conversations", chatHandler.ListMatterConversations)

	// Document domain
	documentRoutes := router.NewDomainGroup("documents", "/documents")
	documentRoutes.POST("/uploads", documentHandler.RequestUpload)
	documentRoutes.POST("/:id/confirm", documentHandler.ConfirmUpload)
	documentRoutes.GET("/:id/download", documentHandler.GetDownloadURL)
	documentRoutes.GET("/:id", documentHandler.Get)
	documentRoutes.GET("", documentHandler.List)
	documentRoutes.PUT("/:id/folder", documentHandler.Move)
	documentRoutes.DELETE("/:id", documentHandler.Delete)
	documentRoutes.POST("/copy", documentHandler.CopyMatterDocuments)

	// Document domain - folders
	folderRoutes := router.NewDomainGroup("folders", "/folders")
	folderRoutes.POST("", documentHandler.CreateFolder)
	folderRoutes.GET("", documentHandler.ListFolders)
	folderRoutes.PUT("/:id", documentHandler.RenameFolder)
	folderRoutes.DELETE("/:id", documentHandler.DeleteFolder)

	// Chat domain
	chatRoutes := router.NewDomainGroup("chat", "/conversations")
	chatRoutes.POST("", chatHandler.CreateConversation)
	chatRoutes.GET("", chatHandler.ListConversations)
	chatRoutes.GET("/:id", chatHandler.GetConversation)
	chatRoutes.POST("/:id/messages", chatHandler.PostMessage)
	chatRoutes.GET("/:id/messages", chatHandler.ListMessages)
	chatRoutes.GET("/:id/unread", chatHandler.CountUnread)
	chatRoutes.POST("/:id/close", chatHandler.CloseConversation)
	chatRoutes.POST("/:id/reopen", chatHandler.ReopenConversation)

	messageRoutes := router.NewDomainGroup("messages", "/messages")
	messageRoutes.POST("/:messageId/read", chatHandler.MarkMessageRead)

	// Notification domain
	notificationRoutes := router.NewDomainGroup("notifications", "/notifications")
	notificationRoutes.GET("", notificationHandler.List)
	notificationRoutes.GET("/unread", notificationHandler.CountUnread)
	notificationRoutes.POST("/:id/read", notificationHandler.MarkRead)
	notificationRoutes.POST("/read-all", notificationHandler.MarkAllRead)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(authRoutes).
		Register(practiceRoutes).
		Register(userRoutes).
		Register(clientRoutes).
		Register(invoiceRoutes).
		Register(subscriptionRoutes).
		Register(webhookRoutes).
		Register(matterRoutes).
		Register(documentRoutes).
		Register(folderRoutes).
		Register(chatRoutes).
		Register(messageRoutes).
		Register(notificationRoutes).
		Register(systemRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
