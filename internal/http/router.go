package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hvac_triage/backend/internal/config"
	"github.com/hvac_triage/backend/internal/db"
	"github.com/hvac_triage/backend/internal/http/handlers"
	"github.com/hvac_triage/backend/internal/http/middleware"
	"github.com/hvac_triage/backend/internal/service"
	"github.com/hvac_triage/backend/internal/sms"

	_ "github.com/hvac_triage/backend/docs"
)

func Router(cfg config.Config, store *db.Store, classifier *service.Classifier, dispatcher *service.Dispatcher, escalator *service.Escalator, reports *service.ReportService, sender sms.Sender, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:             store,
		Classifier:        classifier,
		Dispatcher:        dispatcher,
		Escalator:         escalator,
		Reports:           reports,
		Sender:            sender,
		Validator:         validator.New(),
		Logger:            logger,
		AdminKey:          cfg.AdminKey,
		DefaultBusinessID: cfg.DefaultBusinessID,
	}

	r.GET("/healthz", h.Healthz)

	// Provider-facing webhooks are unauthenticated by design; the provider
	// signs nothing useful and the demo runs behind a tunnel.
	webhook := r.Group("/webhook")
	{
		webhook.POST("/telephony", h.TelephonyWebhook)
		webhook.POST("/sms", h.SMSWebhook)
		webhook.POST("/lookup-customer", h.LookupCustomer)
		webhook.POST("/dispatch-emergency", h.DispatchEmergency)
		webhook.POST("/check-calendar", h.CheckCalendar)
	}

	api := r.Group("/api")
	{
		api.GET("/businesses/:id", h.BusinessGet)
		api.GET("/businesses/:id/technicians", h.TechniciansList)
		api.GET("/businesses/:id/calls", h.CallsList)
		api.GET("/businesses/:id/calls/latest", h.CallLatest)
		api.GET("/calls/:id", h.CallDetails)
		api.GET("/businesses/:id/reports/:date", h.ReportGet)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/businesses", h.BusinessCreate)
		admin.PATCH("/businesses/:id", h.BusinessUpdate)
		admin.POST("/businesses/:id/technicians", h.TechnicianCreate)
		admin.POST("/businesses/:id/reports/generate", h.ReportGenerate)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
