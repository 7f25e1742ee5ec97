package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/service"
	"github.com/AlejandroAndrade98/embipos/pkg/health"
	"github.com/AlejandroAndrade98/embipos/pkg/middleware"
)

const serviceName = "pos-terminal"

// Services groups what the router exposes.
type Services struct {
	Auth     *service.AuthService
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
	Reports  *service.ReportService
	Goals    *service.GoalsService
}

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	CORS       middleware.CORSConfig
	PprofCIDRs []string
	// RequestTimeout bounds each request. Checkout waits on the POS API, so
	// it must exceed the outbound client timeout.
	RequestTimeout time.Duration
	// LoginRPS and LoginBurst throttle sign-in attempts per client. Zero
	// disables the limit.
	LoginRPS   float64
	LoginBurst int
}

// NewRouter creates a chi router with all terminal routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	authHandler := NewAuthHandler(svc.Auth, logger)
	cartHandler := NewCartHandler(svc.Cart, svc.Checkout, logger)
	catalogHandler := NewCatalogHandler(svc.Catalog, logger)
	reportHandler := NewReportHandler(svc.Reports, svc.Goals, logger)

	authenticate := func(ctx context.Context, token string) (*middleware.Claims, error) {
		return svc.Auth.Authenticate(ctx, token)
	}
	manager := middleware.RequireRole(domain.RoleAdmin, domain.RoleLeader)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(
			middleware.RateLimit(cfg.LoginRPS, cfg.LoginBurst, logger),
			middleware.RequestLogger(logger),
			middleware.NoStore,
		).Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authenticate))
			r.Use(middleware.RequestLogger(logger))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)

				r.Get("/cart", cartHandler.GetCart)
				r.Delete("/cart", cartHandler.ClearCart)
				r.Post("/cart/items", cartHandler.AddItem)
				r.Delete("/cart/items/{sku}", cartHandler.RemoveItem)

				r.Post("/checkout", cartHandler.Checkout)
				r.Get("/checkouts", cartHandler.ListCheckouts)
			})

			r.Route("/products", func(r chi.Router) {
				r.With(middleware.CacheControl(15)).Get("/", catalogHandler.ListProducts)
				r.With(manager).Post("/", catalogHandler.CreateProduct)
				r.With(manager).Put("/{id}", catalogHandler.UpdateProduct)
				r.With(manager).Patch("/{id}/stock", catalogHandler.ChangeStock)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(middleware.CacheControl(60))
				r.Get("/daily", reportHandler.Daily)
				r.Get("/range", reportHandler.Range)
				r.Get("/rows", reportHandler.Rows)
			})

			r.Route("/goals", func(r chi.Router) {
				r.Get("/", reportHandler.GetGoals)
				r.With(manager).Put("/", reportHandler.UpdateGoals)
				r.Get("/progress", reportHandler.Progress)
			})
		})
	})

	return r
}
