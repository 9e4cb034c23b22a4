//go:build integration

package docstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"onpaku/pkg/platform/sentinel"
	"onpaku/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	store := NewPostgresStore(pg.DB)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	suite.Run(t, &PostgresStoreSuite{ctx: context.Background(), store: store})
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.store.db.ExecContext(s.ctx, "TRUNCATE documents")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestSetGetRoundTrip() {
	col := s.store.Collection("things")
	s.Require().NoError(col.Set(s.ctx, "a", Document{"x": "1", "nested": Document{"y": "2"}}, SetOptions{}))

	doc, err := col.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal("1", doc["x"])
	s.Equal("2", doc["nested"].(map[string]any)["y"])
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Collection("things").Get(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMergeSetKeepsExistingFields() {
	col := s.store.Collection("things")
	s.Require().NoError(col.Set(s.ctx, "a", Document{"x": "1", "y": "2"}, SetOptions{}))
	s.Require().NoError(col.Set(s.ctx, "a", Document{"x": "9"}, SetOptions{Merge: true}))

	doc, err := col.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal("9", doc["x"])
	s.Equal("2", doc["y"])
}

func (s *PostgresStoreSuite) TestUpdateMissingReturnsNotFound() {
	err := s.store.Collection("things").Update(s.ctx, "nope", Document{"x": "1"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestQueryByEquality() {
	col := s.store.Collection("vcs")
	s.Require().NoError(col.Set(s.ctx, "a", Document{"userEmail": "a@x.com", "status": "pending"}, SetOptions{}))
	s.Require().NoError(col.Set(s.ctx, "b", Document{"userEmail": "a@x.com", "status": "completed"}, SetOptions{}))
	s.Require().NoError(col.Set(s.ctx, "c", Document{"userEmail": "b@x.com", "status": "pending"}, SetOptions{}))

	results, err := col.Query(s.ctx,
		Filter{Field: "userEmail", Value: "a@x.com"},
		Filter{Field: "status", Value: "pending"},
	)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("a", results[0].ID)
}

func (s *PostgresStoreSuite) TestCollectionsAreIsolated() {
	s.Require().NoError(s.store.Collection("users").Set(s.ctx, "a", Document{"x": "1"}, SetOptions{}))

	_, err := s.store.Collection("programs").Get(s.ctx, "a")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMutateSerializesConcurrentAppends() {
	col := s.store.Collection("programs")
	s.Require().NoError(col.Set(s.ctx, "p1", Document{"partnerUsers": []any{}}, SetOptions{}))

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := col.Mutate(s.ctx, "p1", func(doc Document) (Document, error) {
				list := doc["partnerUsers"].([]any)
				doc["partnerUsers"] = append(list, "partner")
				return doc, nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	doc, err := col.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Len(doc["partnerUsers"].([]any), writers)
}
