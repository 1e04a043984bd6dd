package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/stretchr/testify/assert"
)

type mockTaxonomy struct {
	categories    []types.Category
	subCategories []types.SubCategory
	categoryErr   error
	subErr        error
	categoryCalls int
	subCalls      []string
}

func (m *mockTaxonomy) ListCategories(ctx context.Context) ([]types.Category, error) {
	m.categoryCalls++
	return m.categories, m.categoryErr
}

func (m *mockTaxonomy) ListSubCategories(ctx context.Context, categoryId string) ([]types.SubCategory, error) {
	m.subCalls = append(m.subCalls, categoryId)
	if m.subErr != nil {
		return nil, m.subErr
	}
	if categoryId == "" {
		return m.subCategories, nil
	}
	result := []types.SubCategory{}
	for _, s := range m.subCategories {
		if s.CategoryId == categoryId {
			result = append(result, s)
		}
	}
	return result, nil
}

func newMock() *mockTaxonomy {
	return &mockTaxonomy{
		categories: []types.Category{
			{Id: "c-rings", Name: "Rings", Slug: "rings", IsActive: true},
			{Id: "c-neck", Name: "Necklaces", Slug: "necklaces", IsActive: true},
			{Id: "c-ear", Name: "Ear Cuffs", IsActive: true},
		},
		subCategories: []types.SubCategory{
			{Id: "s-bands", Name: "Bands", Slug: "bands", CategoryId: "c-rings"},
			{Id: "s-chokers", Name: "Chokers", Slug: "chokers", CategoryId: "c-neck"},
			{Id: "s-orphan", Name: "Anklets", Slug: "anklets", CategoryId: "c-feet"},
		},
	}
}

func TestExplicitIdsSkipLookups(t *testing.T) {
	m := newMock()
	r := New(m, m)
	res, err := r.Resolve(context.Background(), Request{
		CategorySlug:          "rings",
		SubCategorySlug:       "bands",
		ExplicitCategoryId:    "c-x",
		ExplicitSubCategoryId: "s-x",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, Result{CategoryId: "c-x", SubCategoryId: "s-x"}, res)
	assert.Equal(t, 0, m.categoryCalls)
	assert.Empty(t, m.subCalls)
}

func TestCategorySlugIsCaseInsensitive(t *testing.T) {
	m := newMock()
	res, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "RINGS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, "c-rings", res.CategoryId)
	assert.Equal(t, "", res.SubCategoryId)
}

func TestCategoryWithoutSlugMatchesSlugifiedName(t *testing.T) {
	m := newMock()
	res, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "ear-cuffs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, "c-ear", res.CategoryId)
}

func TestUnknownCategoryIsNotFound(t *testing.T) {
	m := newMock()
	_, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "tiaras"})
	var resErr *types.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError got %v", err)
	}
	assert.True(t, resErr.NotFound())
	assert.False(t, resErr.Retryable())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestScopedSubCategory(t *testing.T) {
	m := newMock()
	res, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "rings", SubCategorySlug: "bands"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, Result{CategoryId: "c-rings", SubCategoryId: "s-bands"}, res)
	assert.Equal(t, []string{"c-rings"}, m.subCalls)
}

func TestScopedMissDoesNotFallBackWhenCandidatesExist(t *testing.T) {
	m := newMock()
	_, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "rings", SubCategorySlug: "chokers"})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, []string{"c-rings"}, m.subCalls)
}

func TestEmptyScopeFallsBackToAllSubCategories(t *testing.T) {
	m := newMock()
	m.categories = append(m.categories, types.Category{Id: "c-empty", Slug: "empty"})
	res, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "empty", SubCategorySlug: "chokers"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, []string{"c-empty", ""}, m.subCalls)
	assert.Equal(t, Result{CategoryId: "c-empty", SubCategoryId: "s-chokers"}, res)
}

func TestSubCategoryAdoptsParent(t *testing.T) {
	m := newMock()
	res, err := New(m, m).Resolve(context.Background(), Request{SubCategorySlug: "Anklets"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, Result{CategoryId: "c-feet", SubCategoryId: "s-orphan"}, res)
	assert.Equal(t, []string{""}, m.subCalls)
}

func TestServiceFailureIsRetryable(t *testing.T) {
	m := newMock()
	m.categoryErr = errors.New("connection refused")
	_, err := New(m, m).Resolve(context.Background(), Request{CategorySlug: "rings"})
	var resErr *types.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError got %v", err)
	}
	assert.True(t, resErr.Retryable())
	assert.False(t, resErr.NotFound())

	m = newMock()
	m.subErr = errors.New("timeout")
	_, err = New(m, m).Resolve(context.Background(), Request{SubCategorySlug: "bands"})
	assert.ErrorIs(t, err, types.ErrUnavailable)
}
