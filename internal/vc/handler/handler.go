package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"onpaku/internal/transport/http/shared"
	"onpaku/internal/vc"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/requestcontext"
)

// Service defines the interface for credential operations.
type Service interface {
	ListPendingByEmailEnriched(ctx context.Context, email string) ([]vc.PendingVC, error)
	UpdateStatus(ctx context.Context, documentID string, status vc.Status) error
}

// UpdateStatusRequest is the PATCH /vcs/status body.
type UpdateStatusRequest struct {
	DocumentID string `json:"documentId" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=pending in-progress completed failed"`
}

// Handler handles credential endpoints.
type Handler struct {
	logger   *slog.Logger
	vcs      Service
	validate *validator.Validate
}

// New creates a new credential Handler.
func New(vcs Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		vcs:      vcs,
		validate: validator.New(),
	}
}

// Register registers the credential routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/vcs/pending", h.handleListPending)
	r.Patch("/vcs/status", h.handleUpdateStatus)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email := r.URL.Query().Get("email")
	if email == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email is required"))
		return
	}

	pending, err := h.vcs.ListPendingByEmailEnriched(ctx, email)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list pending vcs",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list pending vcs"))
		return
	}
	if pending == nil {
		pending = []vc.PendingVC{}
	}
	shared.WriteJSON(w, http.StatusOK, pending)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid update vc status request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.WarnContext(ctx, "update vc status validation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	status, err := vc.ParseStatus(req.Status)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	if err := h.vcs.UpdateStatus(ctx, req.DocumentID, status); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "vc not found for status update",
				"request_id", requestcontext.RequestID(ctx),
				"document_id", req.DocumentID,
			)
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to update vc status",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to update vc status"))
		return
	}
	w.WriteHeader(http.StatusOK)
}
