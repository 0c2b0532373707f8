// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/smsflow/app/dto"
	"github.com/amirphl/smsflow/app/handlers"
	"github.com/amirphl/smsflow/app/middleware"
	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	healthPath  = "/api/v1/health"
	storagePath = "/storage"
	webhookPath = "/webhooks/twilio/message"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app                 *fiber.App
	campaignHandler     handlers.CampaignHandlerInterface
	conversationHandler handlers.ConversationHandlerInterface
	webhookHandler      handlers.WebhookHandlerInterface
	serverConfig        config.ServerConfig
	metricsConfig       config.MetricsConfig
	storageConfig       config.StorageConfig
	accessLog           bool
	logger              *zap.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	campaignHandler handlers.CampaignHandlerInterface,
	conversationHandler handlers.ConversationHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	cfg *config.ProductionConfig,
	logger *zap.Logger,
) Router {
	r := &FiberRouter{
		campaignHandler:     campaignHandler,
		conversationHandler: conversationHandler,
		webhookHandler:      webhookHandler,
		serverConfig:        cfg.Server,
		metricsConfig:       cfg.Metrics,
		storageConfig:       cfg.Storage,
		accessLog:           cfg.Logging.EnableAccessLog,
		logger:              logger.Named("router"),
	}

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 2 * utils.MaxUploadSize
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "smsflow",
		ServerHeader: "smsflow",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.metricsConfig.Enabled {
		r.app.Get(r.metricsConfig.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Attachments saved by the media storage
	r.app.Use(storagePath, static.New(r.storageConfig.RootDir))

	// Twilio posts inbound messages here; it must never be rate limited
	r.app.Post(webhookPath, r.webhookHandler.HandleIncomingMessage)

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	campaigns := api.Group("/campaigns")
	// Static segments must be registered before /:id
	campaigns.Get("/dashboard", r.campaignHandler.Dashboard)
	campaigns.Post("/csv-headers", r.campaignHandler.ContactFileHeaders)
	campaigns.Get("/available-variables", r.campaignHandler.AvailableVariables)
	campaigns.Get("/timezones", r.campaignHandler.Timezones)
	campaigns.Post("/", r.campaignHandler.CreateCampaign)
	campaigns.Get("/", r.campaignHandler.ListCampaigns)
	campaigns.Get("/:id", r.campaignHandler.GetCampaign)
	campaigns.Put("/:id", r.campaignHandler.UpdateCampaign)
	campaigns.Delete("/:id", r.campaignHandler.DeleteCampaign)
	campaigns.Post("/:id/upload-contacts", r.campaignHandler.UploadContacts)
	campaigns.Post("/:id/schedule", r.campaignHandler.ScheduleCampaign)
	campaigns.Post("/:id/start", r.campaignHandler.StartCampaign)
	campaigns.Get("/:id/contacts", r.campaignHandler.ListContacts)
	campaigns.Get("/:id/report.xlsx", r.campaignHandler.ExportReport)

	conversations := api.Group("/conversations")
	conversations.Get("/", r.conversationHandler.ListConversations)
	conversations.Post("/", r.conversationHandler.CreateConversation)
	conversations.Get("/:id", r.conversationHandler.GetConversation)
	conversations.Post("/:id/messages", r.conversationHandler.SendMessage)

	r.app.Use(r.notFoundHandler)
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				zap.String("request_id", requestid.FromContext(c)),
				zap.Any("panic", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))

	if r.metricsConfig.Enabled {
		r.app.Use(middleware.Metrics())
	}

	if r.accessLog {
		r.app.Use(middleware.AccessLog(r.logger, healthPath, r.metricsConfig.Path))
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	origins := r.serverConfig.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			contentType := c.Get(fiber.HeaderContentType)
			return strings.Contains(contentType, "image/") ||
				strings.Contains(contentType, "video/") ||
				strings.Contains(contentType, "audio/")
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   "smsflow",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escaped a handler
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("Unhandled request error",
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("request_id", requestid.FromContext(c)),
			zap.Error(err),
		)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
