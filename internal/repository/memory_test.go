package repository

import (
	"context"
	"testing"
	"time"

	"product_catalog/internal/model"
	"product_catalog/internal/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOwner(t *testing.T, s *MemoryStore, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "Owner " + email, Email: email, PasswordHash: "x", Role: model.RoleUser}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, s *MemoryStore, owner uuid.UUID, name string, price float64, qty int64, category string) model.Product {
	t.Helper()
	p := &model.Product{Name: name, Price: price, Quantity: qty, Category: category, Owner: model.Owner{ID: owner}}
	require.NoError(t, s.Products().Create(context.Background(), p))
	return *p
}

func TestMemoryUsers_DuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	seedOwner(t, s, "a@example.com")

	err := s.Users().Create(context.Background(), &model.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	other := seedOwner(t, s, "b@example.com")
	other.Email = "a@example.com"
	assert.ErrorIs(t, s.Users().UpdateProfile(context.Background(), other), ErrDuplicateEmail)
}

func TestMemoryUsers_TokenVersion(t *testing.T) {
	s := NewMemoryStore()
	u := seedOwner(t, s, "a@example.com")
	ctx := context.Background()

	v, err := s.Users().IncrementTokenVersion(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = s.Users().UpdatePassword(ctx, u.ID, "newhash")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	stored, err := s.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", stored.PasswordHash)

	_, err = s.Users().IncrementTokenVersion(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProducts_FindJoinsOwner(t *testing.T) {
	s := NewMemoryStore()
	u := seedOwner(t, s, "a@example.com")
	p := seedProduct(t, s, u.ID, "Lamp", 10, 1, "home")

	got, err := s.Products().Find(context.Background(), pipeline.BuildGetPipeline(u.ID, p.ID))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
	assert.Equal(t, "a@example.com", got[0].Owner.Email)
}

func TestMemoryProducts_CreateManyIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	u := seedOwner(t, s, "a@example.com")
	ctx := context.Background()

	err := s.Products().CreateMany(ctx, []*model.Product{
		{Name: "ok", Owner: model.Owner{ID: u.ID}},
		{Name: "orphan", Owner: model.Owner{ID: uuid.New()}},
	})
	require.Error(t, err)

	n, err := s.Products().Count(ctx, pipeline.BuildFilter(u.ID, pipeline.ListOptions{}))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryProducts_ScopedMutations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	alice := seedOwner(t, s, "alice@example.com")
	bob := seedOwner(t, s, "bob@example.com")
	p := seedProduct(t, s, alice.ID, "Lamp", 10, 1, "home")

	name := "Stolen"
	got, err := s.Products().FindOneAndUpdate(ctx, pipeline.ByOwnerAndID(bob.ID, p.ID), model.ProductPatch{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := s.Products().FindOneAndDelete(ctx, pipeline.ByOwnerAndID(bob.ID, p.ID))
	require.NoError(t, err)
	assert.False(t, deleted)

	name = "Desk lamp"
	got, err = s.Products().FindOneAndUpdate(ctx, pipeline.ByOwnerAndID(alice.ID, p.ID), model.ProductPatch{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Desk lamp", got.Name)
	assert.Equal(t, p.Price, got.Price)

	deleted, err = s.Products().FindOneAndDelete(ctx, pipeline.ByOwnerAndID(alice.ID, p.ID))
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Products().FindOneAndDelete(ctx, pipeline.ByOwnerAndID(alice.ID, p.ID))
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryProducts_Aggregate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := seedOwner(t, s, "a@example.com")

	rows, err := s.Products().Aggregate(ctx, pipeline.BuildStatsPipeline(u.ID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].Int(pipeline.StatTotalProducts))
	assert.Equal(t, []string{}, rows[0].Strings(pipeline.StatCategories))

	seedProduct(t, s, u.ID, "a", 10, 2, "b")
	seedProduct(t, s, u.ID, "b", 20, 4, "a")
	seedProduct(t, s, u.ID, "c", 5, 20, "")

	rows, err = s.Products().Aggregate(ctx, pipeline.BuildStatsPipeline(u.ID))
	require.NoError(t, err)
	row := rows[0]
	assert.Equal(t, int64(3), row.Int(pipeline.StatTotalProducts))
	assert.Equal(t, 35.0, row.Float(pipeline.StatTotalValue))
	assert.Equal(t, 11.67, row.Float(pipeline.StatAveragePrice))
	assert.Equal(t, int64(26), row.Int(pipeline.StatTotalStock))
	assert.Equal(t, 5.0, row.Float(pipeline.StatMinPrice))
	assert.Equal(t, 20.0, row.Float(pipeline.StatMaxPrice))
	assert.Equal(t, []string{"a", "b"}, row.Strings(pipeline.StatCategories))
	assert.Equal(t, int64(2), row.Int(pipeline.StatCategoryCount))
	assert.Equal(t, int64(2), row.Int(pipeline.StatLowStockProducts))

	rows, err = s.Products().Aggregate(ctx, pipeline.BuildCategoryStatsPipeline(u.ID))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"", "a", "b"}, []string{
		rows[0].String(pipeline.FieldCategory), rows[1].String(pipeline.FieldCategory), rows[2].String(pipeline.FieldCategory),
	})
	assert.Equal(t, 80.0, rows[1].Float(pipeline.StatTotalValue))
}

func TestEvaluate_SortTieBreakAndPaging(t *testing.T) {
	s := NewMemoryStore()
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	u := seedOwner(t, s, "a@example.com")
	for i := 0; i < 5; i++ {
		seedProduct(t, s, u.ID, "same", 1, 1, "")
	}

	seen := map[uuid.UUID]bool{}
	for page := int64(1); page <= 3; page++ {
		got, err := s.Products().Find(context.Background(),
			pipeline.BuildListPipeline(u.ID, pipeline.ListOptions{Page: page, Limit: 2}))
		require.NoError(t, err)
		for _, p := range got {
			assert.False(t, seen[p.ID], "product repeated across pages")
			seen[p.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestEvaluate_ContainsIsLiteralAndCaseInsensitive(t *testing.T) {
	docs := []doc{
		{pipeline.FieldName: "50% OFF Lamp"},
		{pipeline.FieldName: "500 lamps"},
	}
	m := pipeline.Match{Conditions: []pipeline.Condition{{Field: pipeline.FieldName, Op: pipeline.OpContains, Value: "0% off"}}}

	out, err := evaluate(docs, []pipeline.Stage{m}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "50% OFF Lamp", out[0][pipeline.FieldName])
}
