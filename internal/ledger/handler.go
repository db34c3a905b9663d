package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/singleflight"

	"github.com/colorapp/merchstock/internal/platform/httpx"
)

const rebuildRateLimit = 2
const rebuildRateWindow = time.Minute

// Handler wires HTTP endpoints for ledger reads and maintenance.
type Handler struct {
	logger  *slog.Logger
	service *Service
	reads   singleflight.Group
}

// NewHandler constructs a ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.handleBalance)
	r.Get("/movements", h.handleMovements)
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.Limit(rebuildRateLimit, rebuildRateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		gr.Post("/rebuild", h.handleRebuild)
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	itemID, warehouseID, ok := parseKey(w, r)
	if !ok {
		return
	}
	balance, err := h.service.Balance(r.Context(), itemID, warehouseID)
	if err != nil {
		h.logger.Error("read balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	itemID, warehouseID, ok := parseKey(w, r)
	if !ok {
		return
	}
	filter := MovementFilter{ItemID: itemID, WarehouseID: warehouseID, Limit: 200}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	key := movementsKey(filter)
	result, err, _ := h.singleflightMovements(r, key, filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) singleflightMovements(r *http.Request, key string, filter MovementFilter) (any, error, bool) {
	resultChan := h.reads.DoChan(key, func() (any, error) {
		return h.service.Movements(r.Context(), filter)
	})
	select {
	case <-r.Context().Done():
		return nil, r.Context().Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	rebuilt, err := h.service.RebuildBalances(r.Context())
	if err != nil {
		h.logger.Error("rebuild balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"rebuilt": rebuilt})
}

func parseKey(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item_id")
		return 0, 0, false
	}
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse_id")
		return 0, 0, false
	}
	return itemID, warehouseID, true
}

func movementsKey(filter MovementFilter) string {
	return strconv.FormatInt(filter.ItemID, 10) + ":" + strconv.FormatInt(filter.WarehouseID, 10) + ":" +
		filter.From.Format("2006-01-02") + ":" + filter.To.Format("2006-01-02") + ":" + strconv.Itoa(filter.Limit)
}

// RespondDomainError maps ledger errors for transaction handlers.
func RespondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDataIntegrity):
		httpx.Problem(w, http.StatusInternalServerError, "Data Integrity Violation", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
