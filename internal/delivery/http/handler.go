// Package http exposes the services over a chi router.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/egannguyen/cart-ecommerce/internal/auth"
	"github.com/egannguyen/cart-ecommerce/internal/health"
	"github.com/egannguyen/cart-ecommerce/internal/service"
)

// maxWebhookBody bounds the raw webhook payload read into memory.
const maxWebhookBody = 1 << 20

// Services are the use cases served over HTTP.
type Services struct {
	Accounts    *service.AccountService
	Catalog     *service.CatalogService
	Carts       *service.CartService
	Checkout    *service.CheckoutService
	Payments    *service.PaymentService
	Webhooks    *service.WebhookReconciler
	Fulfillment *service.FulfillmentService
	Reviews     *service.ReviewService
}

// Handler handles HTTP requests for the application.
type Handler struct {
	svc    Services
	tokens *auth.Tokens
	health *health.Registry
	logger *zap.SugaredLogger
}

func NewHandler(svc Services, tokens *auth.Tokens, registry *health.Registry, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, health: registry, logger: logger}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS)

	if h.health != nil {
		h.health.Routes(r)
	}

	// Signature-verified, so no bearer token.
	r.Post("/payments/webhook", h.handleWebhook)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/activate", h.handleActivate)
		r.Post("/otp/resend", h.handleResendOTP)
		r.Post("/login", h.handleLogin)
		r.Post("/password/forgot", h.handleForgotPassword)
		r.Post("/password/reset", h.handleResetPassword)
		r.With(h.authenticate).Post("/logout", h.handleLogout)
	})

	r.Get("/products", h.handleListProducts)
	r.Get("/products/flash-sale", h.handleFlashSale)
	r.Get("/products/{customID}", h.handlePreview)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate, requireVerified)

		r.Get("/cart", h.handleViewCart)
		r.Post("/cart/items", h.handleAddToCart)
		r.Delete("/cart/items/{customID}", h.handleRemoveFromCart)
		r.Post("/cart/checkout", h.handleCheckoutCart)

		r.Post("/orders", h.handleCheckout)
		r.Get("/orders", h.handleListOrders)
		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetOrder)
			r.Get("/history", h.handleOrderHistory)
			r.Post("/address", h.handleSelectAddress)
			r.Post("/pay", h.handlePay)
			r.Post("/pay/card", h.handlePayWithCard)
			r.Post("/confirm-delivery", h.handleConfirmDelivery)
			r.Post("/cancel", h.handleCancel)
			r.Post("/confirm", h.handleConfirmOrder)
		})

		r.Post("/products/{customID}/rate", h.handleRate)
		r.Post("/reviews/{id}/like", h.handleLike)
		r.Delete("/reviews/{id}/like", h.handleUnlike)

		r.Get("/me/addresses", h.handleListAddresses)
		r.Post("/me/addresses", h.handleAddAddress)
		r.Get("/me/cards", h.handleListCards)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.authenticate, requireAdmin)

		r.Post("/items", h.handleAddItem)
		r.Post("/items/{customID}/discount", h.handleSetDiscount)
		r.Get("/orders", h.handleListAllOrders)
		r.Post("/orders/{id}/ship", h.handleShip)
		r.Post("/orders/{id}/deliver", h.handleRequestDelivery)
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// EnableCORS is a middleware to allow the web frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
