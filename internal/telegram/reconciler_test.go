package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services/distributedlock"
	"github.com/adminboard/backend-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *database.UserRepository) {
	t.Helper()
	repo := database.NewUserRepository(testutil.NewSQLiteDB(t))
	return NewReconciler(repo, distributedlock.NewKeyedMutex(), models.RoleViewer, nil), repo
}

func TestSynthesizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		identity Identity
		want     string
	}{
		{"telegram username wins", Identity{ProviderID: "1", Username: "ana", FirstName: "Ana"}, "ana"},
		{"first and last", Identity{ProviderID: "7", FirstName: "Ana", LastName: "Lim"}, "Ana_Lim_7"},
		{"first only", Identity{ProviderID: "7", FirstName: "Ana"}, "Ana_7"},
		{"spaces become underscores", Identity{ProviderID: "7", FirstName: "Mary Jane", LastName: " Watson "}, "Mary_Jane_Watson_7"},
		{"compatibility forms are folded", Identity{ProviderID: "7", FirstName: "Ｓｏｋ"}, "Sok_7"},
		{"no names at all", Identity{ProviderID: "7"}, "tg_7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SynthesizeUsername(tt.identity))
		})
	}
}

func TestReconciler_CreatesNewAccount(t *testing.T) {
	r, repo := newTestReconciler(t)
	ctx := t.Context()

	user, err := r.Reconcile(ctx, Identity{
		ProviderID: "42",
		Username:   "ana",
		FirstName:  "Ana",
		PhotoURL:   "https://t.me/ana.jpg",
	}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ana", user.Username)
	require.NotNil(t, user.Email)
	assert.Equal(t, "ana@telegram.com", *user.Email)
	assert.Equal(t, models.ProviderTelegram, user.Provider)
	assert.Equal(t, models.RoleViewer, user.Role)
	require.NotNil(t, user.PhotoURL)
	assert.Nil(t, user.PhoneNumber)
	assert.Empty(t, user.PasswordHash)

	stored, err := repo.GetByProvider(ctx, models.ProviderTelegram, "42")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestReconciler_ReturnsExistingAndMergesProfile(t *testing.T) {
	r, repo := newTestReconciler(t)
	ctx := t.Context()

	first, err := r.Reconcile(ctx, Identity{ProviderID: "42", Username: "ana"}, "")
	require.NoError(t, err)

	second, err := r.Reconcile(ctx, Identity{ProviderID: "42", Username: "renamed", PhotoURL: "https://t.me/new.jpg"}, "+85512345678")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ana", second.Username, "username is only chosen once")

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PhoneNumber)
	assert.Equal(t, "+85512345678", *stored.PhoneNumber)
	require.NotNil(t, stored.PhotoURL)
	assert.Equal(t, "https://t.me/new.jpg", *stored.PhotoURL)
}

func TestReconciler_UsernameCollisionFallsBack(t *testing.T) {
	r, repo := newTestReconciler(t)
	ctx := t.Context()

	email := "ana@example.com"
	require.NoError(t, repo.Create(ctx, &models.User{
		Username: "ana",
		Email:    &email,
		Provider: models.ProviderPassword,
		Role:     models.RoleEditor,
	}))

	user, err := r.Reconcile(ctx, Identity{ProviderID: "42", Username: "ana"}, "")
	require.NoError(t, err)
	assert.Equal(t, "ana_42", user.Username)
	assert.Equal(t, "ana_42@telegram.com", *user.Email)
}

func TestReconciler_PlaceholderCollisions(t *testing.T) {
	tests := []struct {
		name         string
		existing     []models.User
		identity     Identity
		wantUsername string
		wantEmail    string
	}{
		{
			name:         "suffixed username also taken",
			existing:     []models.User{{Username: "alice"}, {Username: "alice_777"}},
			identity:     Identity{ProviderID: "777", Username: "alice"},
			wantUsername: "tg_777",
			wantEmail:    "tg_777@telegram.com",
		},
		{
			name:         "placeholder email registered by someone else",
			existing:     []models.User{{Username: "robert", Email: strPtr("bob@telegram.com")}},
			identity:     Identity{ProviderID: "888", Username: "bob"},
			wantUsername: "bob",
			wantEmail:    "tg_888@telegram.com",
		},
		{
			name: "every fixed candidate taken",
			existing: []models.User{
				{Username: "carol"}, {Username: "carol_5"}, {Username: "tg_5"},
			},
			identity: Identity{ProviderID: "5", Username: "carol"},
		},
		{
			name: "both placeholder emails taken",
			existing: []models.User{
				{Username: "x1", Email: strPtr("dave@telegram.com")},
				{Username: "x2", Email: strPtr("tg_6@telegram.com")},
			},
			identity:     Identity{ProviderID: "6", Username: "dave"},
			wantUsername: "dave",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, repo := newTestReconciler(t)
			ctx := t.Context()
			for _, u := range tt.existing {
				u.Provider = models.ProviderPassword
				u.Role = models.RoleEditor
				require.NoError(t, repo.Create(ctx, &u))
			}

			user, err := r.Reconcile(ctx, tt.identity, "")
			require.NoError(t, err)
			require.NotNil(t, user.Email)
			if tt.wantUsername != "" {
				assert.Equal(t, tt.wantUsername, user.Username)
			} else {
				assert.Regexp(t, `^tg_`+tt.identity.ProviderID+`_[0-9a-f]{8}$`, user.Username)
			}
			if tt.wantEmail != "" {
				assert.Equal(t, tt.wantEmail, *user.Email)
			} else {
				assert.Regexp(t, `^tg_`+tt.identity.ProviderID+`(_[0-9a-f]{8})?@telegram\.com$`, *user.Email)
			}

			again, err := r.Reconcile(ctx, tt.identity, "")
			require.NoError(t, err)
			assert.Equal(t, user.ID, again.ID)
		})
	}
}

func strPtr(s string) *string {
	return &s
}

func TestReconciler_ConfiguredDefaultRole(t *testing.T) {
	repo := database.NewUserRepository(testutil.NewSQLiteDB(t))
	r := NewReconciler(repo, nil, models.RoleEditor, nil)

	user, err := r.Reconcile(t.Context(), Identity{ProviderID: "5", FirstName: "Bo"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, user.Role)

	invalid := NewReconciler(repo, nil, models.Role("Owner"), nil)
	assert.Equal(t, models.RoleViewer, invalid.defaultRole)
}

func TestReconciler_MissingProviderID(t *testing.T) {
	r, _ := newTestReconciler(t)
	_, err := r.Reconcile(t.Context(), Identity{Username: "x"}, "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestReconciler_ConcurrentSameIdentityCreatesOneAccount(t *testing.T) {
	r, _ := newTestReconciler(t)

	ids := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := r.Reconcile(context.Background(), Identity{ProviderID: "77", FirstName: "Kim"}, "")
			if assert.NoError(t, err) {
				ids <- user.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

// racingStore reports no account on the first lookup and then fails the
// insert as if another replica had just created it.
type racingStore struct {
	UserStore
	lookups int
	winner  *models.User
}

func (s *racingStore) GetByProvider(ctx context.Context, provider models.Provider, providerID string) (*models.User, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, database.ErrNotFound
	}
	return s.winner, nil
}

func (s *racingStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, database.ErrNotFound
}

func (s *racingStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, database.ErrNotFound
}

func (s *racingStore) Create(ctx context.Context, u *models.User) error {
	return errors.Join(database.ErrDuplicate, errors.New("UNIQUE constraint failed"))
}

func TestReconciler_RetriesAfterDuplicate(t *testing.T) {
	winner := &models.User{ID: "winner", Username: "kim", Role: models.RoleViewer}
	store := &racingStore{winner: winner}
	r := NewReconciler(store, nil, models.RoleViewer, nil)

	user, err := r.Reconcile(t.Context(), Identity{ProviderID: "9", Username: "kim"}, "")
	require.NoError(t, err)
	assert.Equal(t, "winner", user.ID)
	assert.Equal(t, 2, store.lookups)
}
