package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	placeholderDomain = "@telegram.com"
	randomAttempts    = 5
)

// UserStore is the slice of the user repository the reconciler needs.
type UserStore interface {
	GetByProvider(ctx context.Context, provider models.Provider, providerID string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
}

// Locker serializes work on a key. The returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Reconciler maps a verified Telegram identity onto a local account,
// creating it on first sight.
type Reconciler struct {
	users       UserStore
	locker      Locker
	defaultRole models.Role
	logger      *logging.StandardLogger
}

// NewReconciler builds a Reconciler. An invalid defaultRole falls back to
// Viewer.
func NewReconciler(users UserStore, locker Locker, defaultRole models.Role, logger *logging.StandardLogger) *Reconciler {
	if !defaultRole.Valid() {
		defaultRole = models.RoleViewer
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Reconciler{
		users:       users,
		locker:      locker,
		defaultRole: defaultRole,
		logger:      logger.WithComponent("telegram_reconciler"),
	}
}

// Reconcile returns the account for identity. phone, when not empty, is
// stored on the account.
func (r *Reconciler) Reconcile(ctx context.Context, identity Identity, phone string) (*models.User, error) {
	if strings.TrimSpace(identity.ProviderID) == "" {
		return nil, missing("id")
	}

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, "telegram:"+identity.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock telegram identity: %w", err)
		}
		defer release()
	}

	user, err := r.reconcile(ctx, identity, phone)
	if errors.Is(err, database.ErrDuplicate) {
		// Another replica created the account between our lookup and insert.
		r.logger.Debug("Retrying reconciliation after duplicate", zap.String("provider_id", identity.ProviderID))
		user, err = r.reconcile(ctx, identity, phone)
	}
	return user, err
}

func (r *Reconciler) reconcile(ctx context.Context, identity Identity, phone string) (*models.User, error) {
	user, err := r.users.GetByProvider(ctx, models.ProviderTelegram, identity.ProviderID)
	switch {
	case err == nil:
		return r.merge(ctx, user, identity, phone)
	case errors.Is(err, database.ErrNotFound):
		return r.create(ctx, identity, phone)
	default:
		return nil, fmt.Errorf("failed to look up telegram user: %w", err)
	}
}

func (r *Reconciler) merge(ctx context.Context, user *models.User, identity Identity, phone string) (*models.User, error) {
	changed := false
	if phone != "" && (user.PhoneNumber == nil || *user.PhoneNumber != phone) {
		user.PhoneNumber = &phone
		changed = true
	}
	if identity.PhotoURL != "" && (user.PhotoURL == nil || *user.PhotoURL != identity.PhotoURL) {
		photo := identity.PhotoURL
		user.PhotoURL = &photo
		changed = true
	}
	if !changed {
		return user, nil
	}

	if err := r.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update telegram user: %w", err)
	}
	return user, nil
}

func (r *Reconciler) create(ctx context.Context, identity Identity, phone string) (*models.User, error) {
	username, err := r.availableUsername(ctx, identity)
	if err != nil {
		return nil, err
	}
	email, err := r.availableEmail(ctx, username, identity.ProviderID)
	if err != nil {
		return nil, err
	}

	providerID := identity.ProviderID
	user := &models.User{
		Username:   username,
		Email:      &email,
		Provider:   models.ProviderTelegram,
		ProviderID: &providerID,
		Role:       r.defaultRole,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
	}
	if identity.PhotoURL != "" {
		photo := identity.PhotoURL
		user.PhotoURL = &photo
	}
	if phone != "" {
		user.PhoneNumber = &phone
	}

	if err := r.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create telegram user: %w", err)
	}
	r.logger.Info("Created account for telegram identity",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

// availableUsername returns the first free candidate: the synthesized
// username, then base_<id>, then tg_<id>, then tg_<id> with a random suffix.
func (r *Reconciler) availableUsername(ctx context.Context, identity Identity) (string, error) {
	base := SynthesizeUsername(identity)
	fallback := "tg_" + identity.ProviderID
	candidates := []string{base}
	if suffix := "_" + identity.ProviderID; !strings.HasSuffix(base, suffix) {
		candidates = append(candidates, base+suffix)
	}
	if fallback != base {
		candidates = append(candidates, fallback)
	}

	name, err := r.firstFree(ctx, candidates, func(s string) string { return fallback + "_" + s }, r.users.GetByUsername)
	if err != nil {
		return "", fmt.Errorf("failed to check username: %w", err)
	}
	return name, nil
}

// availableEmail derives the placeholder address from username, falling
// back to tg_<id> forms when an existing account already holds it.
func (r *Reconciler) availableEmail(ctx context.Context, username, providerID string) (string, error) {
	fallback := "tg_" + providerID
	candidates := []string{username + placeholderDomain}
	if username != fallback {
		candidates = append(candidates, fallback+placeholderDomain)
	}

	email, err := r.firstFree(ctx, candidates, func(s string) string { return fallback + "_" + s + placeholderDomain }, r.users.GetByEmail)
	if err != nil {
		return "", fmt.Errorf("failed to check email: %w", err)
	}
	return email, nil
}

// firstFree returns the first candidate lookup reports as absent, then
// tries a few random forms built by randomized.
func (r *Reconciler) firstFree(ctx context.Context, candidates []string, randomized func(string) string, lookup func(context.Context, string) (*models.User, error)) (string, error) {
	for i := 0; i < randomAttempts; i++ {
		candidates = append(candidates, randomized(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
	}
	for _, candidate := range candidates {
		_, err := lookup(ctx, candidate)
		switch {
		case errors.Is(err, database.ErrNotFound):
			return candidate, nil
		case err != nil:
			return "", err
		}
		r.logger.Debug("Placeholder already taken", zap.String("candidate", candidate))
	}
	return "", fmt.Errorf("%w: every placeholder candidate is taken", database.ErrDuplicate)
}

// SynthesizeUsername picks a username for a new Telegram account: the
// Telegram username when set, otherwise first[_last]_id. The result is
// NFKC-normalized with whitespace replaced by underscores.
func SynthesizeUsername(identity Identity) string {
	if name := normalizeUsername(identity.Username); name != "" {
		return name
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{identity.FirstName, identity.LastName} {
		if p = normalizeUsername(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "tg")
	}
	parts = append(parts, identity.ProviderID)
	return strings.Join(parts, "_")
}

func normalizeUsername(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), "_")
}
