package handlers

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

const (
	maxOrderDescription = 4000
	maxOrderField       = 100
	defaultOrderLimit   = 50
	maxOrderLimit       = 200
)

// OrderHandler accepts custom production orders.
type OrderHandler struct {
	Orders OrderStore
	// Publisher is optional.
	Publisher OrderPublisher
	NowFunc   func() time.Time
}

type orderRequest struct {
	Description string `json:"description"`
	AgeRange    string `json:"ageRange"`
	Style       string `json:"style"`
}

func (req orderRequest) validate() string {
	switch {
	case req.Description == "":
		return "description is required"
	case utf8.RuneCountInString(req.Description) > maxOrderDescription:
		return "description must be at most 4000 characters"
	case req.AgeRange == "":
		return "age range is required"
	case utf8.RuneCountInString(req.AgeRange) > maxOrderField:
		return "age range must be at most 100 characters"
	case req.Style == "":
		return "style is required"
	case utf8.RuneCountInString(req.Style) > maxOrderField:
		return "style must be at most 100 characters"
	}
	return ""
}

// Create handles POST /api/v1/orders.
func (h OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	req.AgeRange = strings.TrimSpace(req.AgeRange)
	req.Style = strings.TrimSpace(req.Style)
	if msg := req.validate(); msg != "" {
		respondError(ctx, w, http.StatusBadRequest, msg)
		return
	}

	order := models.CustomOrder{
		ID:          uuid.NewString(),
		AccountID:   p.AccountID,
		Description: req.Description,
		AgeRange:    req.AgeRange,
		Style:       req.Style,
		Status:      models.OrderStatusPending,
		CreatedAt:   nowOr(h.NowFunc),
	}
	if err := h.Orders.Create(ctx, order); err != nil {
		logger.Error("create order failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to submit order")
		return
	}
	metrics.RecordOrderSubmitted()

	if h.Publisher != nil {
		if err := h.Publisher.PublishOrder(ctx, order); err != nil {
			logger.Error("publish order failed", "order_id", order.ID, "error", err)
		}
	}

	logger.Info("custom order submitted", "order_id", order.ID)
	respondJSON(ctx, w, http.StatusCreated, order)
}

// List handles GET /api/v1/orders.
func (h OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	limit, err := queryLimit(r, defaultOrderLimit, maxOrderLimit)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.Orders.ListForAccount(ctx, p.AccountID, limit)
	if err != nil {
		logging.FromContext(ctx).Error("list orders failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load orders")
		return
	}
	if orders == nil {
		orders = []models.CustomOrder{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"orders": orders})
}
