package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"onpaku/internal/transport/http/shared"
	"onpaku/internal/user"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/requestcontext"
)

// Service defines the interface for user operations.
type Service interface {
	Create(ctx context.Context, req user.CreateRequest) error
	Update(ctx context.Context, req user.UpdateRequest) error
	FindByEmail(ctx context.Context, email string) (user.Response, error)
}

// Handler handles user endpoints.
type Handler struct {
	logger   *slog.Logger
	users    Service
	validate *validator.Validate
}

// New creates a new user Handler.
func New(users Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		users:    users,
		validate: validator.New(),
	}
}

// Register registers the user routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.handleCreate)
	r.Patch("/users", h.handleUpdate)
	r.Get("/users/{email}", h.handleFind)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req user.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warnBadRequest(ctx, "invalid create user request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.warnBadRequest(ctx, "create user validation failed", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	if err := h.users.Create(ctx, req); err != nil {
		h.writeServiceError(ctx, w, "failed to create user", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req user.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warnBadRequest(ctx, "invalid update user request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.warnBadRequest(ctx, "update user validation failed", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	if err := h.users.Update(ctx, req); err != nil {
		h.writeServiceError(ctx, w, "failed to update user", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid email parameter"))
		return
	}

	resp, err := h.users.FindByEmail(ctx, email)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to find user", err)
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
