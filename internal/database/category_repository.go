package database

import (
	"context"
	"fmt"
	"time"

	"github.com/adminboard/backend-api/internal/models"
	"github.com/google/uuid"
)

type CategoryRepository struct {
	db DBPool
}

func NewCategoryRepository(db DBPool) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func scanCategory(row Row) (*models.ProductCategory, error) {
	var c models.ProductCategory
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.ProductCategory) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.Exec(ctx, `INSERT INTO product_categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`, c.ID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create category: %w", translateError(err))
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.ProductCategory, error) {
	return scanCategory(r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM product_categories WHERE id = $1`, id))
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.ProductCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.ProductCategory, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Update(ctx context.Context, c *models.ProductCategory) error {
	c.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	res, err := r.db.Exec(ctx, `UPDATE product_categories SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		c.Name, c.Description, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", translateError(err))
	}
	return requireAffected(res)
}

// Delete fails with ErrReferenced while products still point at the category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `DELETE FROM product_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", translateError(err))
	}
	return requireAffected(res)
}
