package merchandise

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/colorapp/merchstock/internal/catalog"
	"github.com/colorapp/merchstock/internal/ledger"
	"github.com/colorapp/merchstock/internal/platform/httpx"
	"github.com/colorapp/merchstock/internal/shared"
)

// Handler wires HTTP endpoints for merchandise entries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a merchandise handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Post("/{id}/submit", h.submit)
		r.Post("/{id}/cancel", h.cancel)
	})
}

type lineForm struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"required,gt=0"`
}

type entryForm struct {
	Type              string     `json:"type" validate:"required,oneof=ISSUE RECEIPT TRANSFER"`
	SourceWarehouseID int64      `json:"source_warehouse_id"`
	TargetWarehouseID int64      `json:"target_warehouse_id"`
	Description       string     `json:"description"`
	Lines             []lineForm `json:"lines" validate:"required,min=1,dive"`
}

type actorForm struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := EntryFilter{
		Status: Status(q.Get("status")),
		Type:   ledger.TransactionType(q.Get("type")),
		Page:   page,
		Limit:  limit,
	}
	entries, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var form actorForm
	_ = httpx.DecodeJSON(r, &form)
	entry, err := h.service.Submit(r.Context(), id, form.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var form actorForm
	_ = httpx.DecodeJSON(r, &form)
	entry, err := h.service.Cancel(r.Context(), id, form.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (EntryInput, bool) {
	var form entryForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return EntryInput{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return EntryInput{}, false
	}
	input := EntryInput{
		Type:              ledger.TransactionType(form.Type),
		SourceWarehouseID: form.SourceWarehouseID,
		TargetWarehouseID: form.TargetWarehouseID,
		Description:       form.Description,
	}
	for _, line := range form.Lines {
		input.Lines = append(input.Lines, LineInput{ItemID: line.ItemID, Qty: line.Qty})
	}
	return input, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidConfiguration):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Transaction Configuration", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, shared.ErrImmutable), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, catalog.ErrItemNotFound), errors.Is(err, catalog.ErrWarehouseNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Item Or Warehouse", err.Error())
	default:
		ledger.RespondDomainError(w, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return 0, false
	}
	return id, true
}
