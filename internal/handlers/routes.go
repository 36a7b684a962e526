package handlers

import (
	"net/http"
	"time"

	"github.com/adstudio/backend/internal/config"
	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts  AccountStore
	Sessions  SessionManager
	Catalog   VideoCatalog
	Ledger    DownloadLedger
	Signer    URLSigner
	Favorites FavoriteStore
	Downloads DownloadStore
	Orders    OrderStore
	Publisher OrderPublisher
	Checkout  CheckoutService
	Database  Pinger

	Trial          config.TrialConfig
	DownloadURLTTL time.Duration

	AuthLimiter       middleware.RateLimiter
	CheckoutLimiter   middleware.RateLimiter
	TrustForwardedFor bool
	NowFunc           func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	authH := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Trial: deps.Trial, NowFunc: deps.NowFunc}
	account := AccountHandler{Accounts: deps.Accounts, NowFunc: deps.NowFunc}
	videos := VideoHandler{Catalog: deps.Catalog}
	downloads := DownloadHandler{Ledger: deps.Ledger, Downloads: deps.Downloads, Signer: deps.Signer, URLTTL: deps.DownloadURLTTL}
	favorites := FavoriteHandler{Favorites: deps.Favorites}
	billingH := BillingHandler{Checkout: deps.Checkout}
	orders := OrderHandler{Orders: deps.Orders, Publisher: deps.Publisher, NowFunc: deps.NowFunc}
	dashboard := DashboardHandler{Accounts: deps.Accounts, Downloads: deps.Downloads, Favorites: deps.Favorites, NowFunc: deps.NowFunc}

	authed := middleware.Authenticate(deps.Sessions)
	protect := func(fn http.HandlerFunc) http.Handler { return authed(fn) }
	authLimited := middleware.RateLimit(deps.AuthLimiter, "auth", deps.TrustForwardedFor)
	checkoutLimited := middleware.RateLimit(deps.CheckoutLimiter, "checkout", deps.TrustForwardedFor)

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/v1/auth/signup", authLimited(http.HandlerFunc(authH.SignUp)))
	mux.Handle("POST /api/v1/auth/login", authLimited(http.HandlerFunc(authH.Login)))
	mux.Handle("POST /api/v1/auth/refresh", authLimited(http.HandlerFunc(authH.Refresh)))
	mux.Handle("POST /api/v1/auth/logout", protect(authH.Logout))
	mux.Handle("GET /api/v1/account", protect(account.Get))

	mux.HandleFunc("GET /api/v1/videos", videos.List)
	mux.HandleFunc("GET /api/v1/videos/{id}", videos.Get)
	mux.HandleFunc("GET /api/v1/categories", videos.Categories)
	mux.Handle("POST /api/v1/videos/{id}/download", protect(downloads.Download))
	mux.Handle("GET /api/v1/downloads", protect(downloads.List))

	mux.Handle("GET /api/v1/favorites", protect(favorites.List))
	mux.Handle("PUT /api/v1/favorites/{videoId}", protect(favorites.Add))
	mux.Handle("DELETE /api/v1/favorites/{videoId}", protect(favorites.Remove))
	mux.Handle("POST /api/v1/favorites/{videoId}/toggle", protect(favorites.Toggle))

	mux.HandleFunc("GET /api/v1/plans", billingH.Plans)
	mux.Handle("POST /api/v1/checkout", checkoutLimited(protect(billingH.StartCheckout)))

	mux.Handle("POST /api/v1/orders", protect(orders.Create))
	mux.Handle("GET /api/v1/orders", protect(orders.List))

	mux.Handle("GET /api/v1/dashboard", protect(dashboard.Get))
}

// NewRouter returns the instrumented application handler.
func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return metrics.Instrument(mux)
}
