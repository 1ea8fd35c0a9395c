package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"phishguard-backend/internal/handlers"
	"phishguard-backend/internal/middleware"
	"phishguard-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	sessionHandler *handlers.SessionHandler,
	contentHandler *handlers.ContentHandler,
	deliveryHandler *handlers.DeliveryHandler,
	templateHandler *handlers.TemplateHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Generation rate limiter (30 req/min per IP), provider quota protection
	generateLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", sessionHandler.Start)
			r.Get("/{id}", sessionHandler.Get)
			r.Post("/{id}/interactions", sessionHandler.RecordInteraction)
			r.Post("/{id}/complete", sessionHandler.Complete)
		})

		// ──── Content Routes ────
		r.Route("/content", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(generateLimiter.Middleware)
			r.Post("/generate", contentHandler.Generate)
			r.Post("/analyze", contentHandler.Analyze)
			r.Post("/detect", contentHandler.Detect)
			r.Post("/educational", contentHandler.Educational)
		})

		// ──── Delivery Routes ────
		r.Route("/deliveries", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/send", deliveryHandler.Send)
			r.Post("/bulk", deliveryHandler.SendBulk)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", deliveryHandler.EnqueueCampaign)
		})

		// ──── Template Routes (authoring boundary) ────
		r.Route("/templates", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", templateHandler.Create)
			r.Get("/", templateHandler.List)
			r.Get("/{id}", templateHandler.Get)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
