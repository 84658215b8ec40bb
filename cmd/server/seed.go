package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/adminboard/backend-api/internal/config"
	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// seedFixture is the YAML layout accepted by the seed command.
type seedFixture struct {
	Users []struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	} `yaml:"users"`
	Categories []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Products []struct {
		Name        string `yaml:"productName"`
		Price       string `yaml:"price"`
		Description string `yaml:"description"`
		Image       string `yaml:"image"`
		Category    string `yaml:"category"`
	} `yaml:"products"`
}

type seedResult struct {
	Users, Categories, Products int
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, categories and products from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeeder(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "path to the YAML fixture")
	return cmd
}

func loadFixture(path string) (*seedFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var fixture seedFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return &fixture, nil
}

func runSeeder(ctx context.Context, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment).WithOperation("seed")
	defer func() { _ = logger.Sync() }()

	fixture, err := loadFixture(path)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := seed(ctx, db, fixture, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	logger.Info("Seeding complete",
		zap.Int("users", res.Users),
		zap.Int("categories", res.Categories),
		zap.Int("products", res.Products),
	)
	return nil
}

// seed inserts fixture rows that do not exist yet, so it can be rerun.
// Products reference categories by name.
func seed(ctx context.Context, db database.DBPool, fixture *seedFixture, bcryptCost int) (seedResult, error) {
	var res seedResult
	users := database.NewUserRepository(db)
	categories := database.NewCategoryRepository(db)
	products := database.NewProductRepository(db)

	for _, u := range fixture.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		taken, err := users.ExistsByUsernameOrEmail(ctx, u.Username, email)
		if err != nil {
			return res, err
		}
		if taken {
			continue
		}
		role := models.Role(u.Role)
		if role == "" {
			role = models.RoleViewer
		}
		if !role.Valid() {
			return res, fmt.Errorf("user %s: unknown role %q", u.Username, u.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Username, err)
		}
		if err := users.Create(ctx, &models.User{
			Username:     u.Username,
			Email:        &email,
			PasswordHash: string(hash),
			Provider:     models.ProviderPassword,
			Role:         role,
		}); err != nil {
			return res, err
		}
		res.Users++
	}

	existing, err := categories.List(ctx)
	if err != nil {
		return res, err
	}
	byName := make(map[string]string, len(existing))
	for _, c := range existing {
		byName[c.Name] = c.ID
	}
	for _, c := range fixture.Categories {
		if _, ok := byName[c.Name]; ok {
			continue
		}
		category := &models.ProductCategory{Name: c.Name, Description: c.Description}
		if err := categories.Create(ctx, category); err != nil {
			return res, err
		}
		byName[c.Name] = category.ID
		res.Categories++
	}

	for _, p := range fixture.Products {
		categoryID, ok := byName[p.Category]
		if !ok {
			return res, fmt.Errorf("product %s: unknown category %q", p.Name, p.Category)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return res, fmt.Errorf("product %s: invalid price: %w", p.Name, err)
		}
		if price.IsNegative() {
			return res, fmt.Errorf("product %s: price must not be negative", p.Name)
		}

		current, err := products.List(ctx, categoryID)
		if err != nil {
			return res, err
		}
		if containsProduct(current, p.Name) {
			continue
		}
		if err := products.Create(ctx, &models.Product{
			ProductName: p.Name,
			Price:       price.Round(2),
			Description: p.Description,
			Image:       p.Image,
			CategoryID:  categoryID,
		}); err != nil {
			return res, err
		}
		res.Products++
	}
	return res, nil
}

func containsProduct(products []models.Product, name string) bool {
	for _, p := range products {
		if p.ProductName == name {
			return true
		}
	}
	return false
}
