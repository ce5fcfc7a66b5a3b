package api

import (
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	user := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireUser(fn)
	}

	mux.HandleFunc("GET /healthz", h.Healthz)

	// Auth
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/auth/refresh", h.Refresh)
	mux.Handle("GET /api/auth/me", user(h.Me))
	mux.Handle("PUT /api/auth/me", user(h.UpdateProfile))

	// Catalog
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/search", h.SearchProducts)
	mux.HandleFunc("GET /api/products/category/{id}", h.ProductsByCategory)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/categories", h.ListCategories)

	// Cart, for guests and users alike
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("GET /api/cart/count", h.CartCount)
	mux.HandleFunc("GET /api/cart/stream", h.CartStream)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("PUT /api/cart/items/{productId}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{productId}", h.RemoveCartItem)

	// Checkout and orders
	mux.Handle("GET /api/checkout", user(h.CheckoutPreview))
	mux.Handle("POST /api/checkout", user(h.PlaceOrder))
	mux.Handle("GET /api/orders", user(h.ListOrders))
	mux.Handle("GET /api/orders/{id}", user(h.GetOrder))
	mux.Handle("POST /api/orders/{id}/cancel", user(h.CancelOrder))

	// Address book
	mux.Handle("GET /api/addresses", user(h.ListAddresses))
	mux.Handle("POST /api/addresses", user(h.CreateAddress))
	mux.Handle("PUT /api/addresses/{id}", user(h.UpdateAddress))
	mux.Handle("DELETE /api/addresses/{id}", user(h.DeleteAddress))
	mux.Handle("PUT /api/addresses/{id}/set-default", user(h.SetDefaultAddress))

	var handler http.Handler = mux
	handler = middleware.Session(h.JWT, h.Sessions)(handler)
	handler = middleware.Recover(handler)
	handler = middleware.Logging(handler)
	return handler
}
