package program

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

// CredentialIssuer announces partner credentials. Satisfied by the vc
// service.
type CredentialIssuer interface {
	IssuePartnerVC(ctx context.Context, email string, data vc.PartnerVCData) error
}

// Service owns the programs collection: upsert-with-merge registration,
// partial update and single-partner addition, each announcing partner
// credentials per the rules below.
type Service struct {
	programs docstore.Collection
	issuer   CredentialIssuer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    *audit.Emitter
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
		programs: store.Collection("programs"),
		issuer:   issuer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrUpdate upserts the program with merge semantics for scalar
// fields while replacing the embedded partner list wholesale, then
// announces a partner credential for every entry of the supplied list,
// including entries that were already partners. Program registration
// always re-announces; only the user-side diff is incremental.
func (s *Service) CreateOrUpdate(ctx context.Context, req CreateRequest) error {
	partners := req.PartnerUsers
	if partners == nil {
		partners = []PartnerUser{}
	}
	doc, err := docstore.Encode(Record{
		Title:        req.Program.Title,
		SubTitle:     req.Program.SubTitle,
		Number:       req.Program.Number,
		Latitude:     req.Program.Latitude,
		Longitude:    req.Program.Longitude,
		PlaceName:    req.Program.PlaceName,
		Zip:          req.Program.Zip,
		Prefecture:   req.Program.Prefecture,
		Address:      req.Program.Address,
		Street:       req.Program.Street,
		PartnerUsers: partners,
		UpdatedAt:    requestcontext.Now(ctx),
	})
	if err != nil {
		return fmt.Errorf("encode program %s: %w", req.Program.ID, err)
	}
	if err := s.programs.Set(ctx, req.Program.ID, doc, docstore.SetOptions{Merge: true}); err != nil {
		return fmt.Errorf("register program %s: %w", req.Program.ID, err)
	}

	for _, partner := range partners {
		if err := s.issuer.IssuePartnerVC(ctx, partner.Email, vc.PartnerVCData{
			ID:         req.Program.ID,
			Title:      req.Program.Title,
			Role:       partner.Role,
			PlaceName:  req.Program.PlaceName,
			Prefecture: req.Program.Prefecture,
			Address:    req.Program.Address,
		}); err != nil {
			return err
		}
	}

	s.metrics.IncrementProgramsRegistered()
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionProgramRegistered, Subject: req.Program.ID})
	}
	return nil
}

// Update merges the supplied scalar fields into an existing program. When
// partner_users is supplied the stored list is replaced wholesale and a
// partner credential is announced for every entry, with stored values
// filling in for title/place/prefecture/address fields absent from this
// request.
func (s *Service) Update(ctx context.Context, req UpdateRequest) error {
	current, err := s.programs.Get(ctx, req.Program.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("program %s not found", req.Program.ID))
		}
		return fmt.Errorf("load program %s: %w", req.Program.ID, err)
	}
	var stored Record
	if err := docstore.Decode(current, &stored); err != nil {
		return fmt.Errorf("decode program %s: %w", req.Program.ID, err)
	}

	fields := docstore.Document{}
	if req.Program.Title != nil {
		fields["title"] = *req.Program.Title
	}
	if req.Program.SubTitle != nil {
		fields["subTitle"] = *req.Program.SubTitle
	}
	if req.Program.Number != nil {
		fields["number"] = *req.Program.Number
	}
	if req.Program.Latitude != nil {
		fields["latitude"] = *req.Program.Latitude
	}
	if req.Program.Longitude != nil {
		fields["longitude"] = *req.Program.Longitude
	}
	if req.Program.PlaceName != nil {
		fields["placeName"] = *req.Program.PlaceName
	}
	if req.Program.Zip != nil {
		fields["zip"] = *req.Program.Zip
	}
	if req.Program.Prefecture != nil {
		fields["prefecture"] = *req.Program.Prefecture
	}
	if req.Program.Address != nil {
		fields["address"] = *req.Program.Address
	}
	if req.Program.Street != nil {
		fields["street"] = *req.Program.Street
	}
	if req.PartnerUsers != nil {
		fields["partnerUsers"] = encodePartners(req.PartnerUsers)
	}
	fields["updatedAt"] = requestcontext.Now(ctx).Format(time.RFC3339)

	if err := s.programs.Update(ctx, req.Program.ID, fields); err != nil {
		return fmt.Errorf("update program %s: %w", req.Program.ID, err)
	}

	if req.PartnerUsers != nil {
		data := vc.PartnerVCData{
			ID:         req.Program.ID,
			Title:      stored.Title,
			PlaceName:  stored.PlaceName,
			Prefecture: stored.Prefecture,
			Address:    stored.Address,
		}
		if req.Program.Title != nil {
			data.Title = *req.Program.Title
		}
		if req.Program.PlaceName != nil {
			data.PlaceName = *req.Program.PlaceName
		}
		if req.Program.Prefecture != nil {
			data.Prefecture = *req.Program.Prefecture
		}
		if req.Program.Address != nil {
			data.Address = *req.Program.Address
		}
		for _, partner := range req.PartnerUsers {
			data.Role = partner.Role
			if err := s.issuer.IssuePartnerVC(ctx, partner.Email, data); err != nil {
				return err
			}
		}
	}

	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionProgramUpdated, Subject: req.Program.ID})
	}
	return nil
}

// AddPartnerUser appends {email, role} to an existing program's partner
// list, or updates the role in place when the email is already present.
// The list mutation is atomic under concurrent callers for the same
// program. One partner credential is announced from the program's stored
// state.
func (s *Service) AddPartnerUser(ctx context.Context, programID, email, role string) error {
	var stored Record
	err := s.programs.Mutate(ctx, programID, func(doc docstore.Document) (docstore.Document, error) {
		if doc == nil {
			return nil, sentinel.ErrNotFound
		}
		if err := docstore.Decode(doc, &stored); err != nil {
			return nil, fmt.Errorf("decode program %s: %w", programID, err)
		}

		replaced := false
		for i := range stored.PartnerUsers {
			if stored.PartnerUsers[i].Email == email {
				stored.PartnerUsers[i].Role = role
				replaced = true
				break
			}
		}
		if !replaced {
			stored.PartnerUsers = append(stored.PartnerUsers, PartnerUser{Email: email, Role: role})
		}

		doc["partnerUsers"] = encodePartners(stored.PartnerUsers)
		doc["updatedAt"] = requestcontext.Now(ctx).Format(time.RFC3339)
		return doc, nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("program %s not found", programID))
		}
		return fmt.Errorf("add partner to program %s: %w", programID, err)
	}

	if err := s.issuer.IssuePartnerVC(ctx, email, vc.PartnerVCData{
		ID:         programID,
		Title:      stored.Title,
		Role:       role,
		PlaceName:  stored.PlaceName,
		Prefecture: stored.Prefecture,
		Address:    stored.Address,
	}); err != nil {
		return err
	}

	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionPartnerAdded, Email: email, Subject: programID})
	}
	return nil
}

// FindByID returns the read projection of one program.
func (s *Service) FindByID(ctx context.Context, id string) (Response, error) {
	doc, err := s.programs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Response{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("program %s not found", id))
		}
		return Response{}, fmt.Errorf("load program %s: %w", id, err)
	}
	var stored Record
	if err := docstore.Decode(doc, &stored); err != nil {
		return Response{}, fmt.Errorf("decode program %s: %w", id, err)
	}

	partners := stored.PartnerUsers
	if partners == nil {
		partners = []PartnerUser{}
	}
	return Response{
		Program: ResponseFields{
			ID:         id,
			Title:      stored.Title,
			SubTitle:   stored.SubTitle,
			Number:     stored.Number,
			Latitude:   stored.Latitude,
			Longitude:  stored.Longitude,
			PlaceName:  stored.PlaceName,
			Zip:        stored.Zip,
			Prefecture: stored.Prefecture,
			Address:    stored.Address,
			Street:     stored.Street,
			UpdatedAt:  stored.UpdatedAt,
		},
		PartnerUsers: partners,
	}, nil
}

func encodePartners(partners []PartnerUser) []any {
	out := make([]any, 0, len(partners))
	for _, p := range partners {
		out = append(out, docstore.Document{"email": p.Email, "role": p.Role})
	}
	return out
}
