package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liveshop/liveshop/internal/domain"
)

const productColumns = `id, name, description, price, image_url, stock, category, is_active, created_at, updated_at`

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL,
		&p.Stock, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns), id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products`, productColumns)
	var (
		conds []string
		args  []any
	)
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, fmt.Sprintf(`is_active = $%d`, len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf(`category = $%d`, len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf(`(name ILIKE $%d OR description ILIKE $%d)`, len(args), len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// ListByIDs returns products for the given ids, preserving the input order.
// Missing ids are skipped rather than erroring, mirroring reference
// population semantics.
func (r *ProductRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1)`, productColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		byID[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ImageURL == "" {
		p.ImageURL = "https://via.placeholder.com/400x300?text=Product+Image"
	}
	if p.Category == "" {
		p.Category = "Other"
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO products (name, description, price, image_url, stock, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, productColumns),
		p.Name, p.Description, p.Price, p.ImageURL, p.Stock, p.Category, p.IsActive)

	created, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

func (r *ProductRepo) Update(ctx context.Context, id uuid.UUID, p domain.Product) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE products
		SET name = $2, description = $3, price = $4, image_url = $5,
		    stock = $6, category = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, productColumns),
		id, p.Name, p.Description, p.Price, p.ImageURL, p.Stock, p.Category, p.IsActive)

	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
