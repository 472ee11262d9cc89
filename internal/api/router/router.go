// Package router assembles the HTTP surface of the front desk service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smileright/dental-frontdesk/internal/http/handlers"
	httpmiddleware "github.com/smileright/dental-frontdesk/internal/http/middleware"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	CallsHandler       *handlers.CallsHandler
	AdminSessions      *handlers.AdminSessionsHandler
	LiveFeed           *handlers.LiveFeed
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: the call lifecycle used by the voice gateway, health,
	// and metrics.
	r.Group(func(public chi.Router) {
		if cfg.CallsHandler != nil {
			public.Get("/health", cfg.CallsHandler.HealthCheck)
			public.Post("/calls", cfg.CallsHandler.StartCall)
			public.Route("/calls/{sessionID}", func(call chi.Router) {
				call.Post("/turns", cfg.CallsHandler.HandleTurn)
				call.Post("/end", cfg.CallsHandler.EndCall)
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin endpoints are JWT-protected.
	if cfg.AdminAuthSecret != "" && cfg.AdminSessions != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/sessions/{sessionID}", func(session chi.Router) {
				session.Get("/", cfg.AdminSessions.GetSession)
				session.Get("/transcript", cfg.AdminSessions.GetTranscript)
			})
			admin.Get("/schedule/{date}", cfg.AdminSessions.GetSchedule)
			admin.Post("/appointments/{appointmentID}/cancel", cfg.AdminSessions.CancelAppointment)
			admin.Get("/patients/{patientID}/appointments", cfg.AdminSessions.GetPatientHistory)
			if cfg.LiveFeed != nil {
				admin.Handle("/ws/live", cfg.LiveFeed.Handler())
			}
		})
	}

	return r
}
