package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/models"
)

// CategoryStore persists product categories.
type CategoryStore interface {
	Create(ctx context.Context, c *models.ProductCategory) error
	GetByID(ctx context.Context, id string) (*models.ProductCategory, error)
	List(ctx context.Context) ([]models.ProductCategory, error)
	Update(ctx context.Context, c *models.ProductCategory) error
	Delete(ctx context.Context, id string) error
}

// ProductStore persists products.
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, categoryID string) ([]models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
}

// CatalogService owns product and category rules: names are required,
// prices are never negative and products always point at a real category.
type CatalogService struct {
	categories CategoryStore
	products   ProductStore
}

func NewCatalogService(categories CategoryStore, products ProductStore) *CatalogService {
	return &CatalogService{categories: categories, products: products}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	return s.categories.List(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.ProductCategory, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.ProductCategory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("Name is required")
	}
	category := &models.ProductCategory{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, req models.CategoryRequest) (*models.ProductCategory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("Name is required")
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = name
	category.Description = strings.TrimSpace(req.Description)
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory fails with database.ErrReferenced while products use it.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.Delete(ctx, id)
}

// ListProducts returns every product, or only those in categoryID.
func (s *CatalogService) ListProducts(ctx context.Context, categoryID string) ([]models.Product, error) {
	return s.products.List(ctx, strings.TrimSpace(categoryID))
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *CatalogService) CreateProduct(ctx context.Context, req models.ProductRequest) (*models.Product, error) {
	product := &models.Product{}
	if err := s.applyProduct(ctx, product, req); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return s.products.GetByID(ctx, product.ID)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, req models.ProductRequest) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyProduct(ctx, product, req); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return s.products.GetByID(ctx, id)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

func (s *CatalogService) applyProduct(ctx context.Context, p *models.Product, req models.ProductRequest) error {
	name := strings.TrimSpace(req.ProductName)
	image := strings.TrimSpace(req.Image)
	categoryID := strings.TrimSpace(req.CategoryID)
	if name == "" || req.Price == nil || image == "" || categoryID == "" {
		return invalid("Required fields are missing")
	}
	if req.Price.IsNegative() {
		return invalid("price must not be negative")
	}

	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return invalid("category %s does not exist", categoryID)
		}
		return fmt.Errorf("failed to load category: %w", err)
	}

	p.ProductName = name
	p.Price = req.Price.Round(2)
	p.Description = strings.TrimSpace(req.Description)
	p.Image = image
	p.CategoryID = categoryID
	return nil
}
