package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"onpaku/internal/program"
	"onpaku/internal/transport/http/shared"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/requestcontext"
)

// Service defines the interface for program operations.
type Service interface {
	CreateOrUpdate(ctx context.Context, req program.CreateRequest) error
	Update(ctx context.Context, req program.UpdateRequest) error
	FindByID(ctx context.Context, id string) (program.Response, error)
}

// Handler handles program endpoints.
type Handler struct {
	logger   *slog.Logger
	programs Service
	validate *validator.Validate
}

// New creates a new program Handler.
func New(programs Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		programs: programs,
		validate: validator.New(),
	}
}

// Register registers the program routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/programs", h.handleCreate)
	r.Patch("/programs", h.handleUpdate)
	r.Get("/programs/{id}", h.handleFind)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req program.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warnBadRequest(ctx, "invalid create program request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.warnBadRequest(ctx, "create program validation failed", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	if err := h.programs.CreateOrUpdate(ctx, req); err != nil {
		h.writeServiceError(ctx, w, "failed to register program", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req program.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warnBadRequest(ctx, "invalid update program request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.warnBadRequest(ctx, "update program validation failed", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	if err := h.programs.Update(ctx, req); err != nil {
		h.writeServiceError(ctx, w, "failed to update program", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	if id == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid id parameter"))
		return
	}

	resp, err := h.programs.FindByID(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to find program", err)
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
