package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/liveshop/liveshop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestProduct(t *testing.T, repo *ProductRepo, name, category string) *domain.Product {
	t.Helper()

	p, err := repo.Create(context.Background(), domain.Product{
		Name:        name,
		Description: "test description",
		Price:       19.99,
		Category:    category,
		IsActive:    true,
	})
	require.NoError(t, err)
	return p
}

func TestProductCreateDefaults(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))

	p, err := repo.Create(context.Background(), domain.Product{
		Name:        "Desk Lamp",
		Description: "Warm light",
		Price:       24.50,
		IsActive:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Other", p.Category)
	assert.Contains(t, p.ImageURL, "placeholder")
	assert.Equal(t, 0, p.Stock)
}

func TestProductGetNotFound(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductListFilters(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))
	ctx := context.Background()

	createTestProduct(t, repo, "Wireless Earbuds", "Electronics")
	createTestProduct(t, repo, "Yoga Mat", "Sports")
	inactive, err := repo.Create(ctx, domain.Product{
		Name:        "Old Phone",
		Description: "Discontinued",
		Price:       1.00,
		Category:    "Electronics",
		IsActive:    false,
	})
	require.NoError(t, err)

	active := true
	got, err := repo.List(ctx, domain.ProductFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, p := range got {
		assert.NotEqual(t, inactive.ID, p.ID)
	}

	got, err = repo.List(ctx, domain.ProductFilter{Category: "Sports"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Yoga Mat", got[0].Name)

	// Search matches name or description, case-insensitively.
	got, err = repo.List(ctx, domain.ProductFilter{Search: "earBUDS"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Wireless Earbuds", got[0].Name)

	got, err = repo.List(ctx, domain.ProductFilter{Search: "discontinued"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inactive.ID, got[0].ID)
}

func TestProductListByIDsPreservesOrder(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))
	ctx := context.Background()

	a := createTestProduct(t, repo, "A", "Other")
	b := createTestProduct(t, repo, "B", "Other")
	c := createTestProduct(t, repo, "C", "Other")

	got, err := repo.ListByIDs(ctx, []uuid.UUID{c.ID, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
	assert.Equal(t, b.ID, got[2].ID)
}

func TestProductListByIDsSkipsMissing(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))
	ctx := context.Background()

	a := createTestProduct(t, repo, "A", "Other")

	got, err := repo.ListByIDs(ctx, []uuid.UUID{uuid.New(), a.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestProductListByIDsEmpty(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))

	got, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProductUpdate(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))
	ctx := context.Background()

	p := createTestProduct(t, repo, "Before", "Electronics")

	p.Name = "After"
	p.Price = 99.99
	p.IsActive = false

	updated, err := repo.Update(ctx, p.ID, *p)
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, 99.99, updated.Price)
	assert.False(t, updated.IsActive)
}

func TestProductUpdateNotFound(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))

	_, err := repo.Update(context.Background(), uuid.New(), domain.Product{
		Name:        "Ghost",
		Description: "d",
		Price:       1,
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductDelete(t *testing.T) {
	repo := NewProductRepo(setupTestPool(t))
	ctx := context.Background()

	p := createTestProduct(t, repo, "Doomed", "Other")

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err := repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, p.ID), domain.ErrProductNotFound)
}
