// Package server wires repositories into handlers and serves the HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mytheresa/storefront/app/account"
	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/brands"
	"github.com/mytheresa/storefront/app/cart"
	"github.com/mytheresa/storefront/app/catalog"
	"github.com/mytheresa/storefront/app/categories"
	"github.com/mytheresa/storefront/app/checkout"
	"github.com/mytheresa/storefront/app/coupons"
	"github.com/mytheresa/storefront/app/dashboard"
	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/app/metrics"
	"github.com/mytheresa/storefront/app/middleware"
	"github.com/mytheresa/storefront/app/orders"
	"github.com/mytheresa/storefront/app/pos"
	"github.com/mytheresa/storefront/app/products"
	"github.com/mytheresa/storefront/app/servicemgmt"
	"github.com/mytheresa/storefront/config"
	"github.com/mytheresa/storefront/models"
)

type Server struct {
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	handler http.Handler
}

func New(cfg *config.Config, logger *logrus.Logger, db *gorm.DB) *Server {
	s := &Server{cfg: cfg, logger: logger, metrics: metrics.New()}

	loc := cfg.Location()
	productsRepo := models.NewProductsRepository(db)
	categoriesRepo := models.NewCategoriesRepository(db)
	brandsRepo := models.NewBrandsRepository(db)
	couponsRepo := models.NewCouponsRepository(db)
	cartsRepo := models.NewCartsRepository(db)
	ordersRepo := models.NewOrdersRepository(db, loc)
	usersRepo := models.NewUsersRepository(db)
	servicesRepo := models.NewServicesRepository(db, loc)

	rules := cfg.Pricing()
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	h := handlers{
		auth:       auth.NewAuthHandler(usersRepo, cartsRepo, tokens),
		catalog:    catalog.NewCatalogHandler(productsRepo, categoriesRepo, brandsRepo),
		categories: categories.NewCategoryHandler(categoriesRepo),
		brands:     brands.NewBrandHandler(brandsRepo),
		products:   products.NewProductHandler(productsRepo, cfg.LowStockThreshold),
		coupons:    coupons.NewCouponHandler(couponsRepo),
		cart:       cart.NewCartHandler(cartsRepo, couponsRepo, rules),
		checkout:   checkout.NewCheckoutHandler(cartsRepo, couponsRepo, usersRepo, ordersRepo, s.metrics, rules),
		orders:     orders.NewOrderHandler(ordersRepo),
		pos:        pos.NewPOSHandler(productsRepo, ordersRepo, usersRepo, s.metrics, rules),
		services:   servicemgmt.NewServiceHandler(servicesRepo),
		account:    account.NewAddressHandler(usersRepo),
		dashboard:  dashboard.NewDashboardHandler(ordersRepo, productsRepo, servicesRepo, cfg.LowStockThreshold, loc),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, s.metrics)
	s.handler = middleware.Chain(
		h.routes(s.metrics),
		middleware.Logging(logger),
		middleware.Recover,
		limiter.Handler,
		auth.Authenticate(tokens, usersRepo),
		middleware.Metrics(s.metrics),
	)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type handlers struct {
	auth       *auth.AuthHandler
	catalog    *catalog.CatalogHandler
	categories *categories.CategoryHandler
	brands     *brands.BrandHandler
	products   *products.ProductHandler
	coupons    *coupons.CouponHandler
	cart       *cart.CartHandler
	checkout   *checkout.CheckoutHandler
	orders     *orders.OrderHandler
	pos        *pos.POSHandler
	services   *servicemgmt.ServiceHandler
	account    *account.AddressHandler
	dashboard  *dashboard.DashboardHandler
}

func (h handlers) routes(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	public := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, fn) }
	user := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, auth.RequireUser(fn)) }
	admin := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireRole(models.RoleAdmin)(fn))
	}
	staff := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireRole(models.RoleStaff, models.RoleAdmin)(fn))
	}

	mux.Handle("GET /metrics", m.Handler())
	public("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Storefront
	public("GET /products", h.catalog.HandleGet)
	public("GET /products/{slug}", h.catalog.HandleGetProduct)
	public("GET /categories", h.catalog.HandleCategoryTree)
	public("GET /brands", h.catalog.HandleBrands)
	public("GET /services/{id}/providers", h.services.HandleAvailableProviders)

	public("GET /cart", h.cart.HandleGet)
	public("DELETE /cart", h.cart.HandleClear)
	public("POST /cart/items", h.cart.HandleAddItem)
	public("PATCH /cart/items/{id}", h.cart.HandleUpdateItem)
	public("DELETE /cart/items/{id}", h.cart.HandleRemoveItem)
	public("POST /cart/coupon", h.cart.HandleApplyCoupon)
	public("DELETE /cart/coupon", h.cart.HandleRemoveCoupon)

	public("POST /auth/register", h.auth.HandleRegister)
	public("POST /auth/login", h.auth.HandleLogin)
	user("GET /auth/me", h.auth.HandleMe)

	user("GET /checkout", h.checkout.HandleSummary)
	user("POST /checkout", h.checkout.HandlePlaceOrder)

	user("GET /orders", h.orders.HandleMyOrders)
	user("GET /orders/{number}", h.orders.HandleMyOrder)
	user("POST /orders/{number}/cancel", h.orders.HandleCancel)

	user("GET /account/addresses", h.account.HandleList)
	user("POST /account/addresses", h.account.HandleCreate)
	user("PUT /account/addresses/{id}", h.account.HandleUpdate)
	user("DELETE /account/addresses/{id}", h.account.HandleDelete)

	// Back office
	admin("GET /admin/dashboard", h.dashboard.HandleGet)

	admin("GET /admin/categories", h.categories.HandleGetAll)
	admin("POST /admin/categories", h.categories.HandleCreate)
	admin("GET /admin/categories/{id}", h.categories.HandleGet)
	admin("PUT /admin/categories/{id}", h.categories.HandleUpdate)
	admin("DELETE /admin/categories/{id}", h.categories.HandleDelete)

	admin("GET /admin/brands", h.brands.HandleList)
	admin("POST /admin/brands", h.brands.HandleCreate)
	admin("GET /admin/brands/{id}", h.brands.HandleGet)
	admin("PUT /admin/brands/{id}", h.brands.HandleUpdate)
	admin("DELETE /admin/brands/{id}", h.brands.HandleDelete)

	admin("GET /admin/products", h.products.HandleList)
	admin("POST /admin/products", h.products.HandleCreate)
	admin("GET /admin/products/{id}", h.products.HandleGet)
	admin("PUT /admin/products/{id}", h.products.HandleUpdate)
	admin("DELETE /admin/products/{id}", h.products.HandleDelete)
	admin("PATCH /admin/products/{id}/stock", h.products.HandleStock)
	admin("PUT /admin/products/{id}/services", h.products.HandleServices)

	admin("GET /admin/coupons", h.coupons.HandleList)
	admin("POST /admin/coupons", h.coupons.HandleCreate)
	admin("GET /admin/coupons/{id}", h.coupons.HandleGet)
	admin("PUT /admin/coupons/{id}", h.coupons.HandleUpdate)
	admin("DELETE /admin/coupons/{id}", h.coupons.HandleDelete)
	admin("PATCH /admin/coupons/{id}/toggle", h.coupons.HandleToggle)

	admin("GET /admin/orders", h.orders.HandleAdminList)
	admin("GET /admin/orders/{id}", h.orders.HandleAdminGet)
	admin("PATCH /admin/orders/{id}/status", h.orders.HandleUpdateStatus)
	admin("PATCH /admin/orders/{id}/payment-status", h.orders.HandleUpdatePaymentStatus)

	admin("GET /admin/services", h.services.HandleListServices)
	admin("POST /admin/services", h.services.HandleCreateService)
	admin("GET /admin/services/{id}", h.services.HandleGetService)
	admin("PUT /admin/services/{id}", h.services.HandleUpdateService)
	admin("DELETE /admin/services/{id}", h.services.HandleDeleteService)

	admin("GET /admin/service-providers", h.services.HandleListProviders)
	admin("POST /admin/service-providers", h.services.HandleCreateProvider)
	admin("GET /admin/service-providers/{id}", h.services.HandleGetProvider)
	admin("PUT /admin/service-providers/{id}", h.services.HandleUpdateProvider)
	admin("DELETE /admin/service-providers/{id}", h.services.HandleDeleteProvider)

	staff("GET /admin/bookings", h.services.HandleListBookings)
	staff("GET /admin/bookings/{id}", h.services.HandleGetBooking)
	staff("PATCH /admin/bookings/{id}/assign", h.services.HandleAssignBooking)
	staff("PATCH /admin/bookings/{id}/status", h.services.HandleUpdateBookingStatus)

	staff("GET /admin/pos/products", h.pos.HandleSearch)
	staff("POST /admin/pos/orders", h.pos.HandleCreateOrder)
	staff("GET /admin/pos/orders/{id}/receipt", h.pos.HandleReceipt)

	return mux
}
