package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"onpaku/internal/audit"
	"onpaku/internal/docstore"
	"onpaku/internal/platform/metrics"
	"onpaku/internal/vc"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/platform/sentinel"
	"onpaku/pkg/requestcontext"
)

// jst renders stored timestamps in the event's local wall clock.
var jst = time.FixedZone("JST", 9*60*60)

// CredentialIssuer announces event credentials. Satisfied by the vc
// service.
type CredentialIssuer interface {
	IssueEventVC(ctx context.Context, email string, data vc.EventVCData) error
}

// Service owns the reservations collection. A reservation is immutable
// once written; reusing a reservation ID overwrites silently.
type Service struct {
	reservations docstore.Collection
	issuer       CredentialIssuer
	logger       *slog.Logger
	metrics      *metrics.Metrics
	audit        *audit.Emitter
}

// Option configures optional Service dependencies.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(emitter *audit.Emitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func NewService(store docstore.Store, issuer CredentialIssuer, opts ...Option) *Service {
	s := &Service{
		reservations: store.Collection("reservations"),
		issuer:       issuer,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes the reservation document and announces one event
// credential. The credential payload keeps the exact time strings the
// request carried.
func (s *Service) Create(ctx context.Context, req CreateRequest) error {
	start, err := time.Parse(time.RFC3339, req.Execution.StartTime)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid start_time %q", req.Execution.StartTime))
	}
	end, err := time.Parse(time.RFC3339, req.Execution.EndTime)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid end_time %q", req.Execution.EndTime))
	}

	doc, err := docstore.Encode(Record{
		UserEmail:   req.Email,
		ExecutionID: req.Execution.ID,
		ProgramID:   req.Execution.ProgramID,
		StartTime:   start,
		EndTime:     end,
		Capacity:    req.Execution.Capacity,
		Price:       req.Execution.Price,
		CreatedAt:   requestcontext.Now(ctx),
	})
	if err != nil {
		return fmt.Errorf("encode reservation %s: %w", req.ReservationID, err)
	}
	if err := s.reservations.Set(ctx, req.ReservationID, doc, docstore.SetOptions{}); err != nil {
		return fmt.Errorf("create reservation %s: %w", req.ReservationID, err)
	}

	if err := s.issuer.IssueEventVC(ctx, req.Email, vc.EventVCData{
		ReservationID: req.ReservationID,
		ProgramID:     req.Execution.ProgramID,
		StartTime:     req.Execution.StartTime,
		EndTime:       req.Execution.EndTime,
		Price:         req.Execution.Price,
	}); err != nil {
		return err
	}

	s.metrics.IncrementReservationsCreated()
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionReservationCreated, Email: req.Email, Subject: req.ReservationID})
	}
	return nil
}

// FindByID returns the read projection of one reservation with times
// rendered at UTC+9 regardless of the server timezone.
func (s *Service) FindByID(ctx context.Context, id string) (Response, error) {
	doc, err := s.reservations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Response{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("reservation %s not found", id))
		}
		return Response{}, fmt.Errorf("load reservation %s: %w", id, err)
	}
	var stored Record
	if err := docstore.Decode(doc, &stored); err != nil {
		return Response{}, fmt.Errorf("decode reservation %s: %w", id, err)
	}

	return Response{
		ReservationID: id,
		Email:         stored.UserEmail,
		ExecutionID:   stored.ExecutionID,
		ProgramID:     stored.ProgramID,
		StartTime:     stored.StartTime.In(jst).Format(time.RFC3339),
		EndTime:       stored.EndTime.In(jst).Format(time.RFC3339),
		Capacity:      stored.Capacity,
		Price:         stored.Price,
		CreatedAt:     stored.CreatedAt.In(jst).Format(time.RFC3339),
	}, nil
}
