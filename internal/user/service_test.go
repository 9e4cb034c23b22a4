package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"onpaku/internal/docstore"
	"onpaku/internal/vc"
	dErrors "onpaku/pkg/domain-errors"
)

type partnerCall struct {
	programID string
	email     string
	role      string
}

type fakeRegistrar struct {
	calls []partnerCall
	err   error
}

func (f *fakeRegistrar) AddPartnerUser(_ context.Context, programID, email, role string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, partnerCall{programID: programID, email: email, role: role})
	return nil
}

type fakeIssuer struct {
	calls  []vc.UserVCData
	emails []string
}

func (f *fakeIssuer) IssueUserVC(_ context.Context, email string, data vc.UserVCData) error {
	f.emails = append(f.emails, email)
	f.calls = append(f.calls, data)
	return nil
}

type UserServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *docstore.MemoryStore
	users     docstore.Collection
	issuer    *fakeIssuer
	registrar *fakeRegistrar
	service   *Service
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = docstore.NewMemoryStore()
	s.users = s.store.Collection("users")
	s.issuer = &fakeIssuer{}
	s.registrar = &fakeRegistrar{}
	s.service = NewService(s.store, s.issuer, s.registrar)
}

func (s *UserServiceSuite) createTaro() {
	s.Require().NoError(s.service.Create(s.ctx, CreateRequest{
		ID:         "u1",
		Email:      "taro@example.com",
		FamilyName: "Yamada",
		FirstName:  "Taro",
		BirthYear:  1990,
		Zip:        "874-0000",
		Prefecture: "Oita",
		ManagementPrograms: []ProgramRef{
			{ProgramID: "p1", Role: "owner"},
		},
	}))
}

func (s *UserServiceSuite) TestCreateStoresDocumentKeyedByEmail() {
	s.createTaro()

	doc, err := s.users.Get(s.ctx, "taro@example.com")
	s.Require().NoError(err)
	s.Equal("u1", doc["onpakuUserId"])
	s.Equal("Yamada", doc["familyName"])
	s.Len(doc["managementPrograms"].([]any), 1)
	s.NotEmpty(doc["createdAt"])
}

func (s *UserServiceSuite) TestCreateAnnouncesFullCredential() {
	s.createTaro()

	s.Require().Len(s.issuer.calls, 1)
	s.Equal([]string{"taro@example.com"}, s.issuer.emails)
	got := s.issuer.calls[0]
	s.Equal("u1", got.ID)
	s.Equal("Yamada", got.FamilyName)
	s.Equal("Taro", got.FirstName)
	s.Equal(1990, got.BirthYear)
}

func (s *UserServiceSuite) TestCreateDoesNotRegisterPartners() {
	s.createTaro()
	s.Empty(s.registrar.calls, "registration announces a credential but does not touch programs")
}

func (s *UserServiceSuite) TestUpdateRegistersOnlyNewMemberships() {
	s.createTaro()
	s.issuer.calls = nil

	err := s.service.Update(s.ctx, UpdateRequest{
		ID:    "u1",
		Email: "taro@example.com",
		ManagementPrograms: []ProgramRef{
			{ProgramID: "p1", Role: "owner"},
			{ProgramID: "p2", Role: "staff"},
		},
	})
	s.Require().NoError(err)

	s.Require().Len(s.registrar.calls, 1, "only the membership absent from the stored list is registered")
	s.Equal(partnerCall{programID: "p2", email: "taro@example.com", role: "staff"}, s.registrar.calls[0])
}

func (s *UserServiceSuite) TestUpdateMergesOnlySuppliedFields() {
	s.createTaro()
	s.issuer.calls = nil

	first := "Jiro"
	err := s.service.Update(s.ctx, UpdateRequest{
		ID:        "u1",
		Email:     "taro@example.com",
		FirstName: &first,
	})
	s.Require().NoError(err)

	doc, err := s.users.Get(s.ctx, "taro@example.com")
	s.Require().NoError(err)
	s.Equal("Jiro", doc["firstName"])
	s.Equal("Yamada", doc["familyName"], "unsupplied fields stay untouched")
	s.Equal("874-0000", doc["zip"])

	s.Require().Len(s.issuer.calls, 1)
	s.Equal(vc.UserVCData{ID: "u1", FirstName: "Jiro"}, s.issuer.calls[0], "credential carries only supplied fields")
}

func (s *UserServiceSuite) TestUpdateUnknownUserReturnsNotFoundWithoutWrites() {
	err := s.service.Update(s.ctx, UpdateRequest{ID: "u9", Email: "nobody@example.com"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.registrar.calls)
	s.Empty(s.issuer.calls)
}

func (s *UserServiceSuite) TestUpdateAbortsWhenPartnerRegistrationFails() {
	s.createTaro()
	s.issuer.calls = nil
	s.registrar.err = errors.New("program store down")

	err := s.service.Update(s.ctx, UpdateRequest{
		ID:    "u1",
		Email: "taro@example.com",
		ManagementPrograms: []ProgramRef{
			{ProgramID: "p1", Role: "owner"},
			{ProgramID: "p9", Role: "helper"},
		},
	})
	s.Require().Error(err)

	doc, getErr := s.users.Get(s.ctx, "taro@example.com")
	s.Require().NoError(getErr)
	s.Len(doc["managementPrograms"].([]any), 1, "failed registration leaves the stored list unchanged")
	s.Empty(s.issuer.calls, "no credential is announced for an aborted update")
}

func (s *UserServiceSuite) TestFindByEmail() {
	s.createTaro()

	got, err := s.service.FindByEmail(s.ctx, "taro@example.com")
	s.Require().NoError(err)
	s.Equal("u1", got.ID)
	s.Equal("taro@example.com", got.Email)
	s.Equal("Yamada", got.FamilyName)
	s.Require().Len(got.ManagementPrograms, 1)
	s.Equal("p1", got.ManagementPrograms[0].ProgramID)
	s.False(got.CreatedAt.IsZero())
}

func (s *UserServiceSuite) TestFindByEmailUnknownReturnsNotFound() {
	_, err := s.service.FindByEmail(s.ctx, "nobody@example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
