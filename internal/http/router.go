// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, admin authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/abuse"
	"github.com/ranvir80/lumo-assistant/internal/config"
	"github.com/ranvir80/lumo-assistant/internal/delivery"
	"github.com/ranvir80/lumo-assistant/internal/http/handlers"
	"github.com/ranvir80/lumo-assistant/internal/http/middleware"
	"github.com/ranvir80/lumo-assistant/internal/llm"
	"github.com/ranvir80/lumo-assistant/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, and then mounts the webhook, chat,
// send, and admin surfaces.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// The per-IP rate limiter is scoped to /api/chat only: webhook traffic is
// throttled by the pipeline's spam tracking instead, and admin routes sit
// behind the Auth-Key check.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"Auth-Key", // shared admin secret must never reach logs
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Compress JSON responses; promhttp negotiates its own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Auth-Key"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Auth-Key"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   cfg.OTEL.ServiceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Dependency injection: gateways and services wired from config and db.
	sender := delivery.NewHTTPSender(cfg.Delivery.SendURL, cfg.Delivery.AuthKey, 15*time.Second)
	notifier := &delivery.Notifier{Sender: sender, AdminID: cfg.Delivery.AdminID}

	completer := llm.NewGateway(llm.GatewayOptions{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		TopP:        float32(cfg.LLM.TopP),
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})

	convSvc := &services.ConversationService{
		DB:           db,
		HistoryLimit: cfg.HistoryLimit,
		ContextLimit: cfg.ContextLimit,
		FlaggedLimit: cfg.FlaggedLimit,
	}
	apptSvc := &services.AppointmentService{
		DB:           db,
		CancelWindow: cfg.CancelWindow,
	}
	pipeline := &services.MessagePipeline{
		DB:               db,
		Conversations:    convSvc,
		Appointments:     apptSvc,
		Completer:        completer,
		Sender:           sender,
		Notifier:         notifier,
		SpamCounter:      abuse.NewWindowCounter(cfg.Abuse.SpamWindow),
		InjectionCounter: abuse.NewWindowCounter(cfg.Abuse.InjectionWindow),
		SpamMax:          cfg.Abuse.SpamMaxPerWindow,
		InjectionMax:     cfg.Abuse.InjectionMax,
		SlotListLimit:    5,
	}
	chatSvc := &services.ChatService{
		DB:            db,
		Conversations: convSvc,
		Completer:     completer,
		MaxMessageLen: cfg.MaxMessageLen,
	}

	h := handlers.New(pipeline, chatSvc, apptSvc, sender, db)

	// Webhook intake (bridge traffic; spam policy lives in the pipeline)
	r.POST("/webhook", h.Webhook)

	// Browser chat, throttled per IP
	rps := float64(cfg.RateMax)
	if s := cfg.RateWindow.Seconds(); s > 0 {
		rps = float64(cfg.RateMax) / s
	}
	rl := middleware.NewRateLimiter(rps, cfg.RateMax, middleware.KeyByUserOrIP())
	r.POST("/api/chat", rl.Handler(), h.Chat)

	// Operator surface behind the shared secret
	authed := r.Group("", middleware.RequireAuthKey(cfg.Delivery.AuthKey))
	{
		authed.POST("/send", h.Send)
		authed.POST("/admin/slots", h.CreateSlot)
		authed.GET("/admin/slots", h.ListSlots)
		authed.POST("/admin/block", h.Block)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
