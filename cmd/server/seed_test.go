package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const fixtureYAML = `
users:
  - username: admin
    email: Admin@Example.com
    password: change-me
    role: Admin
  - username: viewer
    email: viewer@example.com
    password: change-me
categories:
  - name: Drinks
    description: Cold and hot drinks
  - name: Snacks
products:
  - productName: Iced coffee
    price: "2.505"
    image: https://cdn.example.com/coffee.png
    category: Drinks
  - productName: Chips
    price: "1"
    image: chips.png
    category: Snacks
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSeed_IsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fixture, err := loadFixture(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	res, err := seed(t.Context(), db, fixture, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, seedResult{Users: 2, Categories: 2, Products: 2}, res)

	res, err = seed(t.Context(), db, fixture, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, seedResult{}, res)

	admin, err := database.NewUserRepository(db).GetByEmail(t.Context(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("change-me")))

	viewer, err := database.NewUserRepository(db).GetByEmail(t.Context(), "viewer@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, viewer.Role)

	products, err := database.NewProductRepository(db).List(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	for _, p := range products {
		if p.ProductName == "Iced coffee" {
			assert.Equal(t, "2.51", p.Price.StringFixed(2))
		}
	}
}

func TestSeed_RejectsBadFixtures(t *testing.T) {
	tests := map[string]string{
		"unknown category": "products:\n  - productName: x\n    price: \"1\"\n    image: x.png\n    category: Nope\n",
		"bad price":        "categories:\n  - name: A\nproducts:\n  - productName: x\n    price: cheap\n    image: x.png\n    category: A\n",
		"negative price":   "categories:\n  - name: A\nproducts:\n  - productName: x\n    price: \"-1\"\n    image: x.png\n    category: A\n",
		"unknown role":     "users:\n  - username: u\n    email: u@example.com\n    password: p\n    role: Owner\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			db := testutil.NewSQLiteDB(t)
			fixture, err := loadFixture(writeFixture(t, body))
			require.NoError(t, err)
			_, err = seed(t.Context(), db, fixture, bcrypt.MinCost)
			assert.Error(t, err)
		})
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := loadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadFixture(writeFixture(t, "users: [\n"))
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])

	seedCmd, _, err := root.Find([]string{"seed"})
	require.NoError(t, err)
	flag := seedCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "seed.yaml", flag.DefValue)
}
