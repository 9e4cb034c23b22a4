package vc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onpaku/internal/docstore"
	dErrors "onpaku/pkg/domain-errors"
	"onpaku/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *docstore.MemoryStore
	service  *Service
	vcs      docstore.Collection
	users    docstore.Collection
	programs docstore.Collection
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = docstore.NewMemoryStore()
	s.service = NewService(s.store)
	s.vcs = s.store.Collection("vcs")
	s.users = s.store.Collection("users")
	s.programs = s.store.Collection("programs")
}

func (s *ServiceSuite) TestDeriveVCID() {
	s.Equal("user_a@x.com", DeriveVCID(TypeUser, "a@x.com", ""))
	s.Equal("partner_a@x.com_p1", DeriveVCID(TypePartner, "a@x.com", "p1"))
	s.Equal("event_a@x.com_r1", DeriveVCID(TypeEvent, "a@x.com", "r1"))

	first := DeriveVCID(TypePartner, "a@x.com", "p1")
	second := DeriveVCID(TypePartner, "a@x.com", "p1")
	s.Equal(first, second)
}

func (s *ServiceSuite) TestIssuePartnerVCTwiceKeepsOneDocument() {
	data := PartnerVCData{ID: "p1", Title: "Pottery", Role: "owner"}
	s.Require().NoError(s.service.IssuePartnerVC(s.ctx, "a@x.com", data))
	s.Require().NoError(s.service.IssuePartnerVC(s.ctx, "a@x.com", data))

	snapshots, err := s.vcs.Query(s.ctx)
	s.Require().NoError(err)
	s.Len(snapshots, 1)
	s.Equal("partner_a@x.com_p1", snapshots[0].ID)
}

func (s *ServiceSuite) TestReissueResetsStatusAndRefreshesIssuedAt() {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	data := PartnerVCData{ID: "p1", Title: "Pottery", Role: "owner"}

	ctx1 := requestcontext.WithTime(s.ctx, t1)
	s.Require().NoError(s.service.IssuePartnerVC(ctx1, "a@x.com", data))
	s.Require().NoError(s.service.UpdateStatus(s.ctx, "partner_a@x.com_p1", StatusCompleted))

	ctx2 := requestcontext.WithTime(s.ctx, t2)
	s.Require().NoError(s.service.IssuePartnerVC(ctx2, "a@x.com", data))

	doc, err := s.vcs.Get(s.ctx, "partner_a@x.com_p1")
	s.Require().NoError(err)
	s.Equal("pending", doc["status"])
	s.Equal(t2.Format(time.RFC3339), doc["issuedAt"])
}

func (s *ServiceSuite) TestIssueUserVCMergePreservesTopLevelFields() {
	s.Require().NoError(s.vcs.Set(s.ctx, "user_a@x.com", docstore.Document{
		"userEmail": "a@x.com",
		"type":      "user",
		"vcData":    docstore.Document{"familyName": "Yamada"},
		"status":    "completed",
		"issuedAt":  "2025-01-01T00:00:00Z",
		"note":      "legacy",
	}, docstore.SetOptions{}))

	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", UserVCData{FirstName: "Taro"}))

	doc, err := s.vcs.Get(s.ctx, "user_a@x.com")
	s.Require().NoError(err)
	s.Equal("pending", doc["status"], "re-announce resets status")
	s.Equal("legacy", doc["note"], "merge keeps fields absent from the write")
}

func (s *ServiceSuite) TestIssueUserVCPartialReissueKeepsAnnouncedFields() {
	full := UserVCData{
		ID:         "u1",
		FamilyName: "Yamada",
		FirstName:  "Taro",
		BirthYear:  1984,
		Gender:     "male",
		Zip:        "700-0000",
		Address:    "Okayama",
		Street:     "1-2-3",
		Tel:        "090-0000-0000",
	}
	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", full))
	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", UserVCData{ID: "u1", FirstName: "Jiro"}))

	doc, err := s.vcs.Get(s.ctx, "user_a@x.com")
	s.Require().NoError(err)
	vcData, ok := doc["vcData"].(map[string]any)
	s.Require().True(ok)
	s.Equal("Jiro", vcData["firstName"], "supplied field wins")
	s.Equal("Yamada", vcData["familyName"])
	s.Equal(float64(1984), vcData["birthYear"])
	s.Equal("male", vcData["gender"])
	s.Equal("700-0000", vcData["zip"])
	s.Equal("Okayama", vcData["address"])
	s.Equal("1-2-3", vcData["street"])
	s.Equal("090-0000-0000", vcData["tel"])
}

func (s *ServiceSuite) TestListPendingByEmailFiltersStatusAndEmail() {
	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", UserVCData{FamilyName: "Yamada"}))
	s.Require().NoError(s.service.IssueUserVC(s.ctx, "b@x.com", UserVCData{FamilyName: "Suzuki"}))
	s.Require().NoError(s.service.IssuePartnerVC(s.ctx, "a@x.com", PartnerVCData{ID: "p1", Title: "Pottery", Role: "staff"}))
	s.Require().NoError(s.service.UpdateStatus(s.ctx, "partner_a@x.com_p1", StatusCompleted))

	pending, err := s.service.ListPendingByEmail(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("user_a@x.com", pending[0].ID)
	s.Equal(TypeUser, pending[0].Type)
	s.Equal(StatusPending, pending[0].Status)
	s.False(pending[0].IssuedAt.IsZero())
}

func (s *ServiceSuite) TestEnrichedListingOverlaysLiveFields() {
	s.Require().NoError(s.users.Set(s.ctx, "a@x.com", docstore.Document{
		"familyName": "Yamada",
		"firstName":  "Hanako",
		"prefecture": "Oita",
	}, docstore.SetOptions{}))
	s.Require().NoError(s.programs.Set(s.ctx, "p1", docstore.Document{
		"title":      "Renamed Workshop",
		"placeName":  "New Hall",
		"prefecture": "Oita",
		"address":    "1-2-3",
	}, docstore.SetOptions{}))

	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", UserVCData{FamilyName: "Stale", FirstName: "Stale"}))
	s.Require().NoError(s.service.IssuePartnerVC(s.ctx, "a@x.com", PartnerVCData{
		ID: "p1", Title: "Old Title", Role: "owner", PlaceName: "Old Hall",
	}))

	enriched, err := s.service.ListPendingByEmailEnriched(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Require().Len(enriched, 2)

	s.Equal("partner_a@x.com_p1", enriched[0].ID)
	s.Equal("Renamed Workshop", enriched[0].VCData["title"])
	s.Equal("New Hall", enriched[0].VCData["placeName"])
	s.Equal("owner", enriched[0].VCData["role"], "role stays from the stored snapshot")

	s.Equal("user_a@x.com", enriched[1].ID)
	s.Equal("Yamada", enriched[1].VCData["familyName"])
	s.Equal("Hanako", enriched[1].VCData["firstName"])
}

func (s *ServiceSuite) TestEnrichedListingDropsBrokenJoins() {
	s.Require().NoError(s.users.Set(s.ctx, "a@x.com", docstore.Document{"familyName": "Yamada"}, docstore.SetOptions{}))
	s.Require().NoError(s.programs.Set(s.ctx, "p1", docstore.Document{"title": "Pottery"}, docstore.SetOptions{}))

	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", UserVCData{FamilyName: "Yamada"}))
	s.Require().NoError(s.service.IssuePartnerVC(s.ctx, "a@x.com", PartnerVCData{ID: "p1", Title: "Pottery", Role: "owner"}))
	s.Require().NoError(s.service.IssuePartnerVC(s.ctx, "a@x.com", PartnerVCData{ID: "deleted", Title: "Gone", Role: "staff"}))

	enriched, err := s.service.ListPendingByEmailEnriched(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Require().Len(enriched, 2, "the credential referencing the deleted program is dropped")
	s.Equal("partner_a@x.com_p1", enriched[0].ID)
	s.Equal("user_a@x.com", enriched[1].ID)
}

func (s *ServiceSuite) TestEnrichedListingDropsUnknownType() {
	s.Require().NoError(s.vcs.Set(s.ctx, "mystery_a@x.com", docstore.Document{
		"userEmail": "a@x.com",
		"type":      "mystery",
		"vcData":    docstore.Document{},
		"status":    "pending",
		"issuedAt":  "2026-01-01T00:00:00Z",
	}, docstore.SetOptions{}))

	enriched, err := s.service.ListPendingByEmailEnriched(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Empty(enriched)
}

func (s *ServiceSuite) TestUpdateStatusUnknownDocumentReturnsNotFound() {
	err := s.service.UpdateStatus(s.ctx, "user_nobody@x.com", StatusCompleted)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateStatusAllowsAnyTransition() {
	s.Require().NoError(s.service.IssueUserVC(s.ctx, "a@x.com", UserVCData{FamilyName: "Yamada"}))

	s.Require().NoError(s.service.UpdateStatus(s.ctx, "user_a@x.com", StatusCompleted))
	s.Require().NoError(s.service.UpdateStatus(s.ctx, "user_a@x.com", StatusPending))

	doc, err := s.vcs.Get(s.ctx, "user_a@x.com")
	s.Require().NoError(err)
	s.Equal("pending", doc["status"])
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "in-progress", "completed", "failed"} {
		status, err := ParseStatus(valid)
		if err != nil {
			t.Fatalf("ParseStatus(%q) returned error: %v", valid, err)
		}
		if string(status) != valid {
			t.Fatalf("ParseStatus(%q) = %q", valid, status)
		}
	}
	if _, err := ParseStatus("active"); err == nil {
		t.Fatal("ParseStatus should reject statuses outside the lifecycle")
	}
}
