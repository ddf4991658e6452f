package routes

import (
	"net/http"

	"plantcare/internal/controller"
	"plantcare/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Handlers groups the stateful controllers the router mounts.
type Handlers struct {
	Webhook   *controller.PaymentWebhook
	CareTasks *controller.CareTasks
	Auth      gin.HandlerFunc // defaults to middleware.AuthMiddleware
}

func Router(h Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", controller.Ready)

	// Signed by the payment processor, not by users
	router.POST("/webhooks/payment", h.Webhook.Handle)

	auth := h.Auth
	if auth == nil {
		auth = middleware.AuthMiddleware()
	}
	api := router.Group("")
	api.Use(auth)
	{
		api.GET("/care-tasks", h.CareTasks.List)
		api.GET("/care-tasks/today", h.CareTasks.Today)
		api.PATCH("/care-tasks/:id", h.CareTasks.SetCompleted)
	}

	return router
}

// WithCORS wraps the router for browser clients of the storefront. Auth is a bearer header, so no credentials are allowed.
func WithCORS(handler http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(handler)
}
