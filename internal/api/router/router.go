package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicops/booking-console/internal/http/handlers"
	httpmiddleware "github.com/clinicops/booking-console/internal/http/middleware"
	"github.com/clinicops/booking-console/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	StaffJWTSecret     string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
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

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Availability.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
		}
	})

	// Staff API
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))

		api.Route("/providers/{providerID}", func(pr chi.Router) {
			pr.Get("/availability", cfg.Availability.GetAvailability)
			pr.Get("/availability/classify", cfg.Availability.ClassifyWindow)
			pr.Post("/bookings", cfg.Availability.ReserveBooking)
			pr.Delete("/bookings/{assignmentID}", cfg.Availability.CancelBooking)
		})

		api.Post("/suggestions", cfg.Availability.SuggestProviders)
	})

	return r
}
