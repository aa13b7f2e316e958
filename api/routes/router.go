package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelierluna/storefront-backend/api/controllers"
	"github.com/atelierluna/storefront-backend/api/middleware"
	cartsvc "github.com/atelierluna/storefront-backend/internal/cart"
	"github.com/atelierluna/storefront-backend/internal/catalog"
	checkoutsvc "github.com/atelierluna/storefront-backend/internal/checkout"
	couponsvc "github.com/atelierluna/storefront-backend/internal/coupons"
	dashboardsvc "github.com/atelierluna/storefront-backend/internal/dashboard"
	ordersvc "github.com/atelierluna/storefront-backend/internal/orders"
	"github.com/atelierluna/storefront-backend/internal/pricing"
	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/redis"
)

// Services bundles everything the router hands to controllers.
type Services struct {
	Catalog   catalog.Service
	Cart      cartsvc.Service
	Coupons   couponsvc.Service
	Pricing   *pricing.Calculator
	Checkout  checkoutsvc.Service
	Orders    ordersvc.Service
	Dashboard *dashboardsvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(svcs.Catalog, logg))
		r.Get("/products/{productID}", controllers.ProductDetail(svcs.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(svcs.Cart, logg))
			r.Post("/", controllers.CartAdd(svcs.Cart, logg))
			r.Post("/decrement", controllers.CartDecrement(svcs.Cart, logg))
			r.Delete("/lines/{productID}", controllers.CartRemoveLine(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
		})

		r.Route("/coupon", func(r chi.Router) {
			r.Post("/", controllers.CouponApply(svcs.Coupons, logg))
			r.Delete("/", controllers.CouponRemove(svcs.Coupons, logg))
		})

		r.Get("/quote", controllers.Quote(svcs.Pricing, logg))
		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.OrderDetail(svcs.Orders, logg))
		})
	})

	r.Route("/api/staff/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireStaff(logg))

		r.Get("/dashboard", controllers.Dashboard(svcs.Dashboard, logg))
		r.Put("/products/{productID}/stock", controllers.ProductStockUpdate(svcs.Catalog, logg))
		r.Post("/coupons/reset-redemptions", controllers.CouponResetRedemptions(svcs.Coupons, logg))
	})

	return r
}
