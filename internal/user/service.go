package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"onpaku/internal/audit"
	"onpaku/internal/docstore"
	"onpaku/internal/platform/metrics"
	"onpaku/internal/vc"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/platform/sentinel"
	"onpaku/pkg/requestcontext"
)

// PartnerRegistrar adds a single partner membership to a program. Satisfied
// by the program service.
type PartnerRegistrar interface {
	AddPartnerUser(ctx context.Context, programID, email, role string) error
}

// CredentialIssuer announces user credentials. Satisfied by the vc service.
type CredentialIssuer interface {
	IssueUserVC(ctx context.Context, email string, data vc.UserVCData) error
}

// Service owns the users collection: registration, partial update with
// the new-membership diff, and the read projection.
type Service struct {
	users     docstore.Collection
	issuer    CredentialIssuer
	registrar PartnerRegistrar
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     *audit.Emitter
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

func NewService(store docstore.Store, issuer CredentialIssuer, registrar PartnerRegistrar, opts ...Option) *Service {
	s := &Service{
		users:     store.Collection("users"),
		issuer:    issuer,
		registrar: registrar,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes the full user document keyed by email, overwriting any
// existing document, then announces a user credential carrying every
// profile field. Duplicate registration is a silent overwrite.
func (s *Service) Create(ctx context.Context, req CreateRequest) error {
	programs := req.ManagementPrograms
	if programs == nil {
		programs = []ProgramRef{}
	}
	doc, err := docstore.Encode(Record{
		OnpakuUserID:       req.ID,
		FamilyName:         req.FamilyName,
		FirstName:          req.FirstName,
		BirthYear:          req.BirthYear,
		Gender:             req.Gender,
		Zip:                req.Zip,
		Prefecture:         req.Prefecture,
		Address:            req.Address,
		Street:             req.Street,
		Tel:                req.Tel,
		ManagementPrograms: programs,
		CreatedAt:          requestcontext.Now(ctx),
	})
	if err != nil {
		return fmt.Errorf("encode user %s: %w", req.Email, err)
	}
	if err := s.users.Set(ctx, req.Email, doc, docstore.SetOptions{}); err != nil {
		return fmt.Errorf("create user %s: %w", req.Email, err)
	}

	if err := s.issuer.IssueUserVC(ctx, req.Email, vc.UserVCData{
		ID:         req.ID,
		FamilyName: req.FamilyName,
		FirstName:  req.FirstName,
		BirthYear:  req.BirthYear,
		Gender:     req.Gender,
		Zip:        req.Zip,
		Prefecture: req.Prefecture,
		Address:    req.Address,
		Street:     req.Street,
		Tel:        req.Tel,
	}); err != nil {
		return err
	}

	s.metrics.IncrementUsersCreated()
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionUserCreated, Email: req.Email})
	}
	return nil
}

// Update merges the supplied fields into an existing user. Memberships in
// management_programs whose programId is absent from the stored list are
// registered with the program service first; if any registration fails the
// user document is left unchanged. The credential announced afterwards
// carries only the supplied fields.
func (s *Service) Update(ctx context.Context, req UpdateRequest) error {
	current, err := s.users.Get(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("user %s not found", req.Email))
		}
		return fmt.Errorf("load user %s: %w", req.Email, err)
	}
	var stored Record
	if err := docstore.Decode(current, &stored); err != nil {
		return fmt.Errorf("decode user %s: %w", req.Email, err)
	}

	if req.ManagementPrograms != nil {
		known := make(map[string]struct{}, len(stored.ManagementPrograms))
		for _, ref := range stored.ManagementPrograms {
			known[ref.ProgramID] = struct{}{}
		}
		for _, ref := range req.ManagementPrograms {
			if _, ok := known[ref.ProgramID]; ok {
				continue
			}
			if err := s.registrar.AddPartnerUser(ctx, ref.ProgramID, req.Email, ref.Role); err != nil {
				return fmt.Errorf("register partner %s on program %s: %w", req.Email, ref.ProgramID, err)
			}
		}
	}

	fields := docstore.Document{}
	vcData := vc.UserVCData{ID: req.ID}
	if req.FamilyName != nil {
		fields["familyName"] = *req.FamilyName
		vcData.FamilyName = *req.FamilyName
	}
	if req.FirstName != nil {
		fields["firstName"] = *req.FirstName
		vcData.FirstName = *req.FirstName
	}
	if req.BirthYear != nil {
		fields["birthYear"] = *req.BirthYear
		vcData.BirthYear = *req.BirthYear
	}
	if req.Gender != nil {
		fields["gender"] = *req.Gender
		vcData.Gender = *req.Gender
	}
	if req.Zip != nil {
		fields["zip"] = *req.Zip
		vcData.Zip = *req.Zip
	}
	if req.Prefecture != nil {
		fields["prefecture"] = *req.Prefecture
		vcData.Prefecture = *req.Prefecture
	}
	if req.Address != nil {
		fields["address"] = *req.Address
		vcData.Address = *req.Address
	}
	if req.Street != nil {
		fields["street"] = *req.Street
		vcData.Street = *req.Street
	}
	if req.Tel != nil {
		fields["tel"] = *req.Tel
		vcData.Tel = *req.Tel
	}
	if req.ManagementPrograms != nil {
		refs := make([]any, 0, len(req.ManagementPrograms))
		for _, ref := range req.ManagementPrograms {
			refs = append(refs, docstore.Document{"programId": ref.ProgramID, "role": ref.Role})
		}
		fields["managementPrograms"] = refs
	}

	if err := s.users.Update(ctx, req.Email, fields); err != nil {
		return fmt.Errorf("update user %s: %w", req.Email, err)
	}

	if err := s.issuer.IssueUserVC(ctx, req.Email, vcData); err != nil {
		return err
	}

	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionUserUpdated, Email: req.Email})
	}
	return nil
}

// FindByEmail returns the read projection of one user.
func (s *Service) FindByEmail(ctx context.Context, email string) (Response, error) {
	doc, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Response{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("user %s not found", email))
		}
		return Response{}, fmt.Errorf("load user %s: %w", email, err)
	}
	var stored Record
	if err := docstore.Decode(doc, &stored); err != nil {
		return Response{}, fmt.Errorf("decode user %s: %w", email, err)
	}

	programs := stored.ManagementPrograms
	if programs == nil {
		programs = []ProgramRef{}
	}
	return Response{
		ID:                 stored.OnpakuUserID,
		Email:              email,
		FamilyName:         stored.FamilyName,
		FirstName:          stored.FirstName,
		BirthYear:          stored.BirthYear,
		Gender:             stored.Gender,
		Zip:                stored.Zip,
		Prefecture:         stored.Prefecture,
		Address:            stored.Address,
		Street:             stored.Street,
		Tel:                stored.Tel,
		ManagementPrograms: programs,
		CreatedAt:          stored.CreatedAt,
	}, nil
}
