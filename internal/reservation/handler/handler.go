package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"onpaku/internal/reservation"
	"onpaku/internal/transport/http/shared"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/requestcontext"
)

// Service defines the interface for reservation operations.
type Service interface {
	Create(ctx context.Context, req reservation.CreateRequest) error
	FindByID(ctx context.Context, id string) (reservation.Response, error)
}

// Handler handles reservation endpoints.
type Handler struct {
	logger       *slog.Logger
	reservations Service
	validate     *validator.Validate
}

// New creates a new reservation Handler.
func New(reservations Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		reservations: reservations,
		validate:     validator.New(),
	}
}

// Register registers the reservation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reservations", h.handleCreate)
	r.Get("/reservations/{id}", h.handleFind)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reservation.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warnBadRequest(ctx, "invalid create reservation request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.warnBadRequest(ctx, "create reservation validation failed", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	if err := h.reservations.Create(ctx, req); err != nil {
		h.writeServiceError(ctx, w, "failed to create reservation", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	if id == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid id parameter"))
		return
	}

	resp, err := h.reservations.FindByID(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to find reservation", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) warnBadRequest(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeBadRequest) {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
}
