package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gallery-backend/api/controllers"
	"github.com/angelmondragon/gallery-backend/api/middleware"
	"github.com/angelmondragon/gallery-backend/internal/capture"
	checkoutsvc "github.com/angelmondragon/gallery-backend/internal/checkout"
	gallerysvc "github.com/angelmondragon/gallery-backend/internal/gallery"
	ordersvc "github.com/angelmondragon/gallery-backend/internal/orders"
	"github.com/angelmondragon/gallery-backend/pkg/config"
	"github.com/angelmondragon/gallery-backend/pkg/db"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	checkoutService checkoutsvc.Service,
	captureOrch *capture.Orchestrator,
	ordersService ordersvc.Service,
	galleryService gallerysvc.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Site.BaseURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/gallery", func(r chi.Router) {
		r.Post("/checkout", controllers.GalleryCheckout(checkoutService, logg))
		r.Post("/capture", controllers.GalleryCapture(captureOrch, logg))
		r.Post("/resend-order", controllers.GalleryResend(ordersService, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.Operator, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/gallery", func(r chi.Router) {
			r.Post("/invite", controllers.AdminGalleryInvite(galleryService, logg))
		})
	})

	return r
}
