package vc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"onpaku/internal/audit"
	"onpaku/internal/docstore"
	"onpaku/internal/platform/metrics"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/platform/sentinel"
	"onpaku/pkg/requestcontext"
)

const enrichConcurrency = 8

// Service owns the vcs collection: deterministic credential identity,
// idempotent-by-key issuance, status updates and the enriched pending
// listing. It reads users and programs only to denormalize the read side;
// it never writes them.
type Service struct {
	vcs      docstore.Collection
	users    docstore.Collection
	programs docstore.Collection
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    *audit.Emitter
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithLogger sets the logger used for read-repair warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables issuance and status counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit enables audit trail events for issuance and status updates.
func WithAudit(emitter *audit.Emitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		vcs:      store.Collection("vcs"),
		users:    store.Collection("users"),
		programs: store.Collection("programs"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeriveVCID builds the deterministic document ID for a credential. The
// derivation is the only deduplication mechanism: issuing the same
// credential twice lands on the same document. Inputs are not escaped, so
// an email containing "_" can collide; accepted limitation.
func DeriveVCID(vcType Type, email, additionalID string) string {
	if additionalID == "" {
		return fmt.Sprintf("%s_%s", vcType, email)
	}
	return fmt.Sprintf("%s_%s_%s", vcType, email, additionalID)
}

// IssueUserVC upserts the user credential for email with merge semantics:
// top-level fields and the fields inside vcData are merged, so a partial
// reissue keeps previously announced profile fields. Every call resets
// status to pending and refreshes issuedAt, deliberately re-announcing the
// subject.
func (s *Service) IssueUserVC(ctx context.Context, email string, data UserVCData) error {
	id := DeriveVCID(TypeUser, email, "")
	doc, err := s.recordDoc(ctx, email, TypeUser, data)
	if err != nil {
		return err
	}
	err = s.vcs.Mutate(ctx, id, func(current docstore.Document) (docstore.Document, error) {
		if current == nil {
			return doc, nil
		}
		merged := make(docstore.Document, len(current)+len(doc))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range doc {
			merged[k] = v
		}
		merged["vcData"] = mergeObjects(current["vcData"], doc["vcData"])
		return merged, nil
	})
	if err != nil {
		return fmt.Errorf("issue user vc %s: %w", id, err)
	}
	s.afterIssue(ctx, email, TypeUser, id)
	return nil
}

// mergeObjects overlays the keys of next onto prev when both are JSON
// objects; otherwise next wins.
func mergeObjects(prev, next any) any {
	prevMap, prevOK := prev.(map[string]any)
	nextMap, nextOK := next.(map[string]any)
	if !prevOK || !nextOK {
		return next
	}
	merged := make(map[string]any, len(prevMap)+len(nextMap))
	for k, v := range prevMap {
		merged[k] = v
	}
	for k, v := range nextMap {
		merged[k] = v
	}
	return merged
}

// IssuePartnerVC upserts the partner credential for email and the program
// carried in data, replacing the whole document.
func (s *Service) IssuePartnerVC(ctx context.Context, email string, data PartnerVCData) error {
	id := DeriveVCID(TypePartner, email, data.ID)
	doc, err := s.recordDoc(ctx, email, TypePartner, data)
	if err != nil {
		return err
	}
	if err := s.vcs.Set(ctx, id, doc, docstore.SetOptions{}); err != nil {
		return fmt.Errorf("issue partner vc %s: %w", id, err)
	}
	s.afterIssue(ctx, email, TypePartner, id)
	return nil
}

// IssueEventVC upserts the event credential for email and the reservation
// carried in data, replacing the whole document.
func (s *Service) IssueEventVC(ctx context.Context, email string, data EventVCData) error {
	id := DeriveVCID(TypeEvent, email, data.ReservationID)
	doc, err := s.recordDoc(ctx, email, TypeEvent, data)
	if err != nil {
		return err
	}
	if err := s.vcs.Set(ctx, id, doc, docstore.SetOptions{}); err != nil {
		return fmt.Errorf("issue event vc %s: %w", id, err)
	}
	s.afterIssue(ctx, email, TypeEvent, id)
	return nil
}

func (s *Service) recordDoc(ctx context.Context, email string, vcType Type, payload any) (docstore.Document, error) {
	data, err := docstore.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode vc payload: %w", err)
	}
	return docstore.Encode(Record{
		UserEmail: email,
		Type:      vcType,
		VCData:    data,
		Status:    StatusPending,
		IssuedAt:  requestcontext.Now(ctx),
	})
}

func (s *Service) afterIssue(ctx context.Context, email string, vcType Type, id string) {
	s.metrics.IncrementVCsIssued(string(vcType))
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{
			Action:  audit.ActionVCIssued,
			Email:   email,
			Subject: id,
		})
	}
}

// ListPendingByEmail returns the raw pending credential records for email,
// ordered by document ID.
func (s *Service) ListPendingByEmail(ctx context.Context, email string) ([]PendingVC, error) {
	snapshots, err := s.vcs.Query(ctx,
		docstore.Filter{Field: "userEmail", Value: email},
		docstore.Filter{Field: "status", Value: string(StatusPending)},
	)
	if err != nil {
		return nil, fmt.Errorf("query pending vcs for %s: %w", email, err)
	}

	result := make([]PendingVC, 0, len(snapshots))
	for _, snap := range snapshots {
		var record Record
		if err := docstore.Decode(snap.Data, &record); err != nil {
			return nil, fmt.Errorf("decode vc %s: %w", snap.ID, err)
		}
		result = append(result, PendingVC{
			ID:        snap.ID,
			UserEmail: record.UserEmail,
			Type:      record.Type,
			VCData:    record.VCData,
			Status:    record.Status,
			IssuedAt:  record.IssuedAt,
		})
	}
	return result, nil
}

// ListPendingByEmailEnriched returns the pending credentials for email with
// live User/Program fields joined over the stored payload snapshot. A
// credential whose joined entity no longer exists, or whose type is
// unknown, is dropped from the result with a warning instead of failing
// the whole read. Store failures other than not-found propagate.
func (s *Service) ListPendingByEmailEnriched(ctx context.Context, email string) ([]PendingVC, error) {
	pending, err := s.ListPendingByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	enriched := make([]*PendingVC, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range pending {
		g.Go(func() error {
			record, err := s.enrich(gctx, pending[i])
			if err != nil {
				return err
			}
			enriched[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]PendingVC, 0, len(pending))
	for _, record := range enriched {
		if record != nil {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// enrich returns nil (without error) when the record should be dropped.
func (s *Service) enrich(ctx context.Context, record PendingVC) (*PendingVC, error) {
	switch record.Type {
	case TypeUser:
		return s.enrichUser(ctx, record)
	case TypePartner:
		return s.enrichProgram(ctx, record, "id", []string{"title", "placeName", "prefecture", "address"})
	case TypeEvent:
		return s.enrichProgram(ctx, record, "programId", []string{"title"})
	default:
		s.logger.WarnContext(ctx, "dropping vc with unknown type",
			"vc_id", record.ID,
			"type", string(record.Type),
		)
		return nil, nil
	}
}

func (s *Service) enrichUser(ctx context.Context, record PendingVC) (*PendingVC, error) {
	doc, err := s.users.Get(ctx, record.UserEmail)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "dropping vc with missing user",
			"vc_id", record.ID,
			"email", record.UserEmail,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrich vc %s: %w", record.ID, err)
	}

	record.VCData = overlay(record.VCData, doc, []string{"familyName", "firstName", "prefecture"})
	return &record, nil
}

func (s *Service) enrichProgram(ctx context.Context, record PendingVC, idField string, fields []string) (*PendingVC, error) {
	programID, _ := record.VCData[idField].(string)
	if programID == "" {
		s.logger.WarnContext(ctx, "dropping vc without program reference",
			"vc_id", record.ID,
		)
		return nil, nil
	}

	doc, err := s.programs.Get(ctx, programID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "dropping vc with missing program",
			"vc_id", record.ID,
			"program_id", programID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrich vc %s: %w", record.ID, err)
	}

	record.VCData = overlay(record.VCData, doc, fields)
	return &record, nil
}

// overlay copies the named live fields over the stored payload snapshot.
func overlay(stored docstore.Document, live docstore.Document, fields []string) docstore.Document {
	merged := make(docstore.Document, len(stored)+len(fields))
	for k, v := range stored {
		merged[k] = v
	}
	for _, field := range fields {
		if v, ok := live[field]; ok {
			merged[field] = v
		}
	}
	return merged
}

// UpdateStatus overwrites the status of one credential. Any transition is
// permitted, including back to pending.
func (s *Service) UpdateStatus(ctx context.Context, documentID string, status Status) error {
	if _, err := s.vcs.Get(ctx, documentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("vc %s not found", documentID))
		}
		return fmt.Errorf("load vc %s: %w", documentID, err)
	}

	if err := s.vcs.Update(ctx, documentID, docstore.Document{"status": string(status)}); err != nil {
		return fmt.Errorf("update vc %s status: %w", documentID, err)
	}

	s.metrics.IncrementVCStatusUpdates(string(status))
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{
			Action:  audit.ActionVCStatusUpdated,
			Subject: documentID,
		})
	}
	return nil
}
