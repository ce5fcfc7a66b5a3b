package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

type fakeProduct struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         *string `json:"price,omitempty"`
	StockQuantity int     `json:"stockQuantity"`
	ImageURL      string  `json:"imageUrl,omitempty"`
}

type fakeCartItem struct {
	ID       int64       `json:"id"`
	Product  fakeProduct `json:"product"`
	Quantity int         `json:"quantity"`
}

type fakeAddress struct {
	ID        int64  `json:"id"`
	Street    string `json:"street"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	IsDefault bool   `json:"isDefault"`
}

type fakeOrderItem struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type fakeOrder struct {
	ID         int64           `json:"id"`
	User       map[string]any  `json:"user"`
	OrderItems []fakeOrderItem `json:"orderItems"`
	Status     string          `json:"status"`
	OrderDate  string          `json:"orderDate"`

	// ownerID lists the order for a user even when User is left out.
	ownerID int64
}

type fakeUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Token     string `json:"token,omitempty"`
	password  string
}

// fakeBackend is an in-memory stand-in for the REST API the storefront
// fronts, speaking its wire format.
type fakeBackend struct {
	mu        sync.Mutex
	nextID    int64
	users     map[string]*fakeUser
	products  map[int64]fakeProduct
	carts     map[int64][]fakeCartItem
	addresses map[int64][]fakeAddress
	orders    map[int64]fakeOrder
	payments  int

	orderFailure string
	authHeaders  []string
}

func price(s string) *string { return &s }

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID: 100,
		users: map[string]*fakeUser{
			"ann@example.com": {ID: 7, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee", Token: "tok-7", password: "secret"},
			"bob@example.com": {ID: 8, Email: "bob@example.com", FirstName: "Bob", Token: "tok-8", password: "secret"},
		},
		products: map[int64]fakeProduct{
			1: {ID: 1, Name: "Mug", Price: price("12.50"), StockQuantity: 5, ImageURL: "/images/mug.png"},
			2: {ID: 2, Name: "Poster", Price: price("8.00"), StockQuantity: 1},
		},
		carts:     map[int64][]fakeCartItem{},
		addresses: map[int64][]fakeAddress{},
		orders:    map[int64]fakeOrder{},
	}
}

func (f *fakeBackend) id() int64 {
	f.nextID++
	return f.nextID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathInt(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return n
}

func (f *fakeBackend) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.users[body["email"]]
		if !ok || u.password != body["password"] {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, u)
	})

	mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
		var u fakeUser
		_ = json.NewDecoder(r.Body).Decode(&u)
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, exists := f.users[u.Email]; exists {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email already registered"})
			return
		}
		u.ID = f.id()
		f.users[u.Email] = &u
		writeJSON(w, http.StatusCreated, u)
	})

	mux.HandleFunc("PUT /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, u := range f.users {
			if u.ID != pathInt(r, "id") {
				continue
			}
			u.FirstName, u.LastName, u.Phone = body["firstName"], body["lastName"], body["phone"]
			saved := *u
			saved.Token = ""
			writeJSON(w, http.StatusOK, saved)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
	})

	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := []fakeProduct{f.products[1], f.products[2]}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.products[pathInt(r, "id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	mux.HandleFunc("GET /api/products/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []fakeProduct
		if r.URL.Query().Get("keyword") == "mug" {
			out = append(out, f.products[1])
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Kitchen"}})
	})

	mux.HandleFunc("GET /api/cart/{uid}", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writeCart(w, pathInt(r, "uid"))
	})

	mux.HandleFunc("POST /api/cart/{uid}/add/{pid}", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		qty, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
		f.mu.Lock()
		defer f.mu.Unlock()
		uid, pid := pathInt(r, "uid"), pathInt(r, "pid")
		p, ok := f.products[pid]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
			return
		}
		items := f.carts[uid]
		found := false
		for i := range items {
			if items[i].Product.ID == pid {
				items[i].Quantity += qty
				found = true
			}
		}
		if !found {
			items = append(items, fakeCartItem{ID: f.id(), Product: p, Quantity: qty})
		}
		f.carts[uid] = items
		f.writeCart(w, uid)
	})

	mux.HandleFunc("PUT /api/cart/{uid}/update/{pid}", func(w http.ResponseWriter, r *http.Request) {
		qty, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
		f.mu.Lock()
		defer f.mu.Unlock()
		uid, pid := pathInt(r, "uid"), pathInt(r, "pid")
		for i := range f.carts[uid] {
			if f.carts[uid][i].Product.ID == pid {
				f.carts[uid][i].Quantity = qty
			}
		}
		f.writeCart(w, uid)
	})

	mux.HandleFunc("DELETE /api/cart/{uid}/remove/{pid}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		uid, pid := pathInt(r, "uid"), pathInt(r, "pid")
		var kept []fakeCartItem
		for _, it := range f.carts[uid] {
			if it.Product.ID != pid {
				kept = append(kept, it)
			}
		}
		f.carts[uid] = kept
		f.writeCart(w, uid)
	})

	mux.HandleFunc("DELETE /api/cart/{uid}/clear", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.carts, pathInt(r, "uid"))
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /api/addresses/user/{uid}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := f.addresses[pathInt(r, "uid")]
		if list == nil {
			list = []fakeAddress{}
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("POST /api/addresses/user/{uid}", func(w http.ResponseWriter, r *http.Request) {
		var a fakeAddress
		_ = json.NewDecoder(r.Body).Decode(&a)
		f.mu.Lock()
		defer f.mu.Unlock()
		uid := pathInt(r, "uid")
		a.ID = f.id()
		f.addresses[uid] = append(f.addresses[uid], a)
		writeJSON(w, http.StatusOK, a)
	})

	mux.HandleFunc("POST /api/orders/user/{uid}", func(w http.ResponseWriter, r *http.Request) {
		var lines []fakeOrderItem
		_ = json.NewDecoder(r.Body).Decode(&lines)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.orderFailure != "" {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": f.orderFailure})
			return
		}
		uid := pathInt(r, "uid")
		o := fakeOrder{
			ID:         f.id(),
			User:       map[string]any{"id": uid},
			ownerID:    uid,
			OrderItems: lines,
			Status:     "PENDING",
			OrderDate:  "2026-03-01T10:00:00",
		}
		f.orders[o.ID] = o
		writeJSON(w, http.StatusOK, o)
	})

	mux.HandleFunc("GET /api/orders/user/{uid}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		uid := pathInt(r, "uid")
		out := []fakeOrder{}
		for _, o := range f.orders {
			if o.ownerID == uid {
				out = append(out, o)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.orders[pathInt(r, "id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
			return
		}
		writeJSON(w, http.StatusOK, o)
	})

	mux.HandleFunc("PUT /api/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.orders[pathInt(r, "id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
			return
		}
		o.Status = r.URL.Query().Get("status")
		f.orders[o.ID] = o
		writeJSON(w, http.StatusOK, o)
	})

	mux.HandleFunc("POST /api/payment/order/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.payments++
		writeJSON(w, http.StatusOK, map[string]any{
			"id":            f.id(),
			"amount":        "0.00",
			"status":        "COMPLETED",
			"paymentMethod": r.URL.Query().Get("paymentMethod"),
			"transactionId": fmt.Sprintf("tx-%d", pathInt(r, "id")),
		})
	})

	return mux
}

func (f *fakeBackend) recordAuth(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

// writeCart is called with f.mu held.
func (f *fakeBackend) writeCart(w http.ResponseWriter, uid int64) {
	items := f.carts[uid]
	if items == nil {
		items = []fakeCartItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": uid, "cartItems": items})
}

func (f *fakeBackend) cartQuantity(uid, pid int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.carts[uid] {
		if it.Product.ID == pid {
			return it.Quantity
		}
	}
	return 0
}

func (f *fakeBackend) setOrderFailure(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderFailure = msg
}

func (f *fakeBackend) addOrder(o fakeOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeBackend) userCarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.carts)
}

func (f *fakeBackend) seenAuthHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeBackend) orderStatus(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}
