package database

import (
	"context"
	"fmt"
	"time"

	"github.com/adminboard/backend-api/internal/models"
	"github.com/google/uuid"
)

const productSelect = `SELECT p.id, p.product_name, p.price, p.description, p.image, p.category_id,
	c.name, p.created_at, p.updated_at
	FROM products p
	JOIN product_categories c ON c.id = p.category_id`

type ProductRepository struct {
	db DBPool
}

func NewProductRepository(db DBPool) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row Row) (*models.Product, error) {
	var p models.Product
	var categoryName string
	err := row.Scan(&p.ID, &p.ProductName, &p.Price, &p.Description, &p.Image, &p.CategoryID,
		&categoryName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	p.Category = &models.CategoryRef{ID: p.CategoryID, Name: categoryName}
	return &p, nil
}

// Create inserts p. A missing category surfaces as ErrReferenced.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.db.Exec(ctx, `INSERT INTO products
		(id, product_name, price, description, image, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ProductName, p.Price, p.Description, p.Image, p.CategoryID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", translateError(err))
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return scanProduct(r.db.QueryRow(ctx, productSelect+` WHERE p.id = $1`, id))
}

// List returns every product, optionally restricted to one category.
func (r *ProductRepository) List(ctx context.Context, categoryID string) ([]models.Product, error) {
	query := productSelect + ` ORDER BY p.created_at DESC`
	args := []any{}
	if categoryID != "" {
		query = productSelect + ` WHERE p.category_id = $1 ORDER BY p.created_at DESC`
		args = append(args, categoryID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	res, err := r.db.Exec(ctx, `UPDATE products SET
		product_name = $1, price = $2, description = $3, image = $4, category_id = $5, updated_at = $6
		WHERE id = $7`,
		p.ProductName, p.Price, p.Description, p.Image, p.CategoryID, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", translateError(err))
	}
	return requireAffected(res)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return requireAffected(res)
}
