package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adstudio/backend/internal/billing"
	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Database = stubPinger{} })
	rec := env.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type got %s", got)
	}

	expectStatus(t, env.do(http.MethodPost, "/healthz", "", nil), http.StatusMethodNotAllowed)

	env = newTestEnv(t, func(d *Dependencies) { d.Database = stubPinger{err: errBoom} })
	expectStatus(t, env.do(http.MethodGet, "/healthz", "", nil), http.StatusServiceUnavailable)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/v1/categories", "", nil)

	rec := env.do(http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "adstudio_http_requests_total") {
		t.Fatal("expected http request counter in exposition")
	}
}

func TestVideoCatalogRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.addVideo("glow", models.CategoryBeauty)
	env.addVideo("salad", models.CategoryDiet)

	rec := env.do(http.MethodGet, "/api/v1/videos?category=beauty", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Videos []models.Video `json:"videos"`
	}
	decodeBody(t, rec, &list)
	if len(list.Videos) != 1 || list.Videos[0].ID != "glow" {
		t.Fatalf("unexpected filtered list %+v", list.Videos)
	}

	rec = env.do(http.MethodGet, "/api/v1/videos?category=all&q=salad", "", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list.Videos) != 1 || list.Videos[0].ID != "salad" {
		t.Fatalf("unexpected search result %+v", list.Videos)
	}

	expectStatus(t, env.do(http.MethodGet, "/api/v1/videos?category=cooking", "", nil), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/videos?limit=abc", "", nil), http.StatusBadRequest)

	rec = env.do(http.MethodGet, "/api/v1/videos/glow", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var video models.Video
	decodeBody(t, rec, &video)
	if video.Category != models.CategoryBeauty {
		t.Fatalf("unexpected video %+v", video)
	}
	expectStatus(t, env.do(http.MethodGet, "/api/v1/videos/nope", "", nil), http.StatusNotFound)

	rec = env.do(http.MethodGet, "/api/v1/categories", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var cats struct {
		Categories []string `json:"categories"`
	}
	decodeBody(t, rec, &cats)
	if strings.Join(cats.Categories, ",") != "all,beauty,diet,hair-care,daily" {
		t.Fatalf("unexpected categories %v", cats.Categories)
	}
}

func TestFavoritesRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.addVideo("v1", models.CategoryBeauty)
	env.addVideo("v2", models.CategoryDiet)
	token := env.addAccount("acct-1", models.TierBasic, 1, nil)

	expectStatus(t, env.do(http.MethodPut, "/api/v1/favorites/v1", token, nil), http.StatusCreated)
	expectStatus(t, env.do(http.MethodPut, "/api/v1/favorites/v1", token, nil), http.StatusOK)
	expectStatus(t, env.do(http.MethodPut, "/api/v1/favorites/missing", token, nil), http.StatusNotFound)

	rec := env.do(http.MethodGet, "/api/v1/favorites", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Favorites []models.Favorite `json:"favorites"`
	}
	decodeBody(t, rec, &list)
	if len(list.Favorites) != 1 {
		t.Fatalf("adding twice must leave one favorite, got %d", len(list.Favorites))
	}

	expectStatus(t, env.do(http.MethodDelete, "/api/v1/favorites/v2", token, nil), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodDelete, "/api/v1/favorites/v1", token, nil), http.StatusNoContent)

	rec = env.do(http.MethodPost, "/api/v1/favorites/v2/toggle", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var toggled map[string]bool
	decodeBody(t, rec, &toggled)
	if !toggled["favorited"] {
		t.Fatal("expected toggle to add the favorite")
	}

	rec = env.do(http.MethodPost, "/api/v1/favorites/v2/toggle", token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &toggled)
	if toggled["favorited"] {
		t.Fatal("expected second toggle to remove the favorite")
	}

	expectStatus(t, env.do(http.MethodGet, "/api/v1/favorites", "", nil), http.StatusUnauthorized)
}

func TestOrdersRoutes(t *testing.T) {
	env := newTestEnv(t)
	token := env.addAccount("acct-1", models.TierBasic, 1, nil)

	valid := map[string]string{"description": "15s serum spot", "ageRange": "25-34", "style": "testimonial"}
	rec := env.do(http.MethodPost, "/api/v1/orders", token, valid)
	expectStatus(t, rec, http.StatusCreated)
	var order models.CustomOrder
	decodeBody(t, rec, &order)
	if order.Status != models.OrderStatusPending || order.AccountID != "acct-1" {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(env.publisher.published) != 1 || env.publisher.published[0].ID != order.ID {
		t.Fatalf("expected order to be published, got %+v", env.publisher.published)
	}

	invalid := map[string]map[string]string{
		"missing description": {"description": " ", "ageRange": "25-34", "style": "testimonial"},
		"long description":    {"description": strings.Repeat("あ", 4001), "ageRange": "25-34", "style": "x"},
		"missing age range":   {"description": "d", "ageRange": "", "style": "x"},
		"long style":          {"description": "d", "ageRange": "20s", "style": strings.Repeat("s", 101)},
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			expectStatus(t, env.do(http.MethodPost, "/api/v1/orders", token, body), http.StatusBadRequest)
		})
	}

	rec = env.do(http.MethodGet, "/api/v1/orders", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Orders []models.CustomOrder `json:"orders"`
	}
	decodeBody(t, rec, &list)
	if len(list.Orders) != 1 {
		t.Fatalf("expected one order got %d", len(list.Orders))
	}
}

func TestOrderPublishFailureDoesNotFailSubmission(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errBoom
	token := env.addAccount("acct-1", models.TierBasic, 1, nil)
	before := testutil.ToFloat64(metrics.OrdersSubmittedTotal)

	rec := env.do(http.MethodPost, "/api/v1/orders", token, map[string]string{"description": "d", "ageRange": "30s", "style": "vlog"})
	expectStatus(t, rec, http.StatusCreated)
	if len(env.orders.orders) != 1 {
		t.Fatal("order should be persisted even when publishing fails")
	}
	if got := testutil.ToFloat64(metrics.OrdersSubmittedTotal) - before; got != 1 {
		t.Fatalf("expected one submitted order counted, got %v", got)
	}
}

func TestOrderStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.orders.err = errBoom
	token := env.addAccount("acct-1", models.TierBasic, 1, nil)
	before := testutil.ToFloat64(metrics.OrdersSubmittedTotal)

	rec := env.do(http.MethodPost, "/api/v1/orders", token, map[string]string{"description": "d", "ageRange": "30s", "style": "vlog"})
	expectStatus(t, rec, http.StatusInternalServerError)
	if len(env.publisher.published) != 0 {
		t.Fatal("unsaved orders must not be published")
	}
	if testutil.ToFloat64(metrics.OrdersSubmittedTotal) != before {
		t.Fatal("failed orders must not be counted")
	}
}

func TestPlansAndCheckout(t *testing.T) {
	env := newTestEnv(t)
	token := env.addAccount("acct-1", models.TierTrial, 3, nil)

	rec := env.do(http.MethodGet, "/api/v1/plans", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var plans struct {
		Plans []billing.Plan `json:"plans"`
	}
	decodeBody(t, rec, &plans)
	if len(plans.Plans) != 4 {
		t.Fatalf("expected 4 plans got %d", len(plans.Plans))
	}

	rec = env.do(http.MethodPost, "/api/v1/checkout", token, map[string]string{"plan": "standard"})
	expectStatus(t, rec, http.StatusOK)
	var redirect map[string]string
	decodeBody(t, rec, &redirect)
	if redirect["url"] != "https://pay.example.com/c/1" {
		t.Fatalf("unexpected redirect %v", redirect)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/v1/checkout", token, map[string]string{}), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/checkout", "", map[string]string{"plan": "basic"}), http.StatusUnauthorized)
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{billing.ErrUnknownPlan, http.StatusBadRequest},
		{billing.ErrCustomPlan, http.StatusBadRequest},
		{billing.ErrAlreadyOnPlan, http.StatusConflict},
		{billing.ErrCheckoutUnavailable, http.StatusBadGateway},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		env := newTestEnv(t, func(d *Dependencies) { d.Checkout = stubCheckout{err: tc.err} })
		token := env.addAccount("acct-1", models.TierTrial, 3, nil)
		rec := env.do(http.MethodPost, "/api/v1/checkout", token, map[string]string{"plan": "basic"})
		expectStatus(t, rec, tc.want)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.addVideo("v1", models.CategoryBeauty)
	env.addVideo("v2", models.CategoryDiet)
	token := env.addAccount("acct-1", models.TierStandard, 100, nil)

	expectStatus(t, env.do(http.MethodPost, "/api/v1/videos/v1/download", token, nil), http.StatusOK)
	expectStatus(t, env.do(http.MethodPut, "/api/v1/favorites/v2", token, nil), http.StatusCreated)

	rec := env.do(http.MethodGet, "/api/v1/dashboard", token, nil)
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Account   map[string]any    `json:"account"`
		Downloads []models.Download `json:"recentDownloads"`
		Favorites []models.Favorite `json:"recentFavorites"`
	}
	decodeBody(t, rec, &resp)
	if resp.Account["tier"] != "standard" || resp.Account["downloadsRemaining"] != float64(99) {
		t.Fatalf("unexpected account overview %v", resp.Account)
	}
	if len(resp.Downloads) != 1 || len(resp.Favorites) != 1 {
		t.Fatalf("expected one download and one favorite, got %d and %d", len(resp.Downloads), len(resp.Favorites))
	}
}

func TestDashboardStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.addAccount("acct-1", models.TierStandard, 100, nil)
	env.accounts.err = errBoom

	expectStatus(t, env.do(http.MethodGet, "/api/v1/dashboard", token, nil), http.StatusInternalServerError)
}
