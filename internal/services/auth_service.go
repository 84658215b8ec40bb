package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adminboard/backend-api/internal/auth"
	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/telegram"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgRegistered     = "User registered successfully."
	msgLoggedIn       = "User login successfully."
	msgTelegramLogin  = "Telegram login successful."
	msgSessionPending = "Waiting for confirmation in Telegram."
)

// AccountStore is the user persistence used by AuthService and UserService.
type AccountStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Update(ctx context.Context, u *models.User) error
}

// AuthService implements every login transport and hands out tokens.
type AuthService struct {
	users      AccountStore
	tokens     *auth.TokenIssuer
	verifier   *telegram.Verifier
	broker     *telegram.Broker
	reconciler *telegram.Reconciler
	bcryptCost int
	logger     *logging.StandardLogger
}

// AuthServiceDeps groups the collaborators of AuthService.
type AuthServiceDeps struct {
	Users      AccountStore
	Tokens     *auth.TokenIssuer
	Verifier   *telegram.Verifier
	Broker     *telegram.Broker
	Reconciler *telegram.Reconciler
	BcryptCost int
	Logger     *logging.StandardLogger
}

func NewAuthService(deps AuthServiceDeps) *AuthService {
	cost := deps.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		verifier:   deps.Verifier,
		broker:     deps.Broker,
		reconciler: deps.Reconciler,
		bcryptCost: cost,
		logger:     logger.WithComponent("auth_service"),
	}
}

// Register creates a password account. Without a role the account is a
// Viewer; any other role may only be granted by an authenticated Admin,
// passed as actor.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, actor models.Role) (*models.RegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, invalid("All fields are required.")
	}

	role := req.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.Valid() {
		return nil, invalid("role must be one of Admin, Editor, Viewer")
	}
	if role != models.RoleViewer && actor != models.RoleAdmin {
		return nil, fmt.Errorf("only an Admin can create %s accounts: %w", role, ErrForbidden)
	}

	taken, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("username or email already taken: %w", database.ErrDuplicate)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        &email,
		PasswordHash: string(hash),
		Provider:     models.ProviderPassword,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("username or email already taken: %w", database.ErrDuplicate)
		}
		return nil, err
	}

	s.logger.LogAuthEvent("password", "registered", user.ID)
	return &models.RegisterResponse{Message: msgRegistered, User: user}, nil
}

// Login checks an email and password pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, invalid("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.LogAuthEvent("password", "user_not_found", "")
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.logger.LogAuthEvent("password", "credential_mismatch", user.ID)
		return nil, ErrCredentialMismatch
	}

	resp, err := s.session(user, msgLoggedIn)
	if err != nil {
		return nil, err
	}
	s.logger.LogAuthEvent("password", "success", user.ID)
	return resp, nil
}

// WidgetLogin accepts a Login Widget callback payload.
func (s *AuthService) WidgetLogin(ctx context.Context, fields map[string]string) (*models.LoginResponse, error) {
	identity, err := s.verifier.VerifyWidgetLogin(fields)
	if err != nil {
		s.recordTelegram(telegram.TransportWidget, err, "")
		return nil, err
	}
	return s.telegramSession(ctx, telegram.TransportWidget, identity, "")
}

// MiniAppLogin accepts Mini-App initData and an optional phone number.
func (s *AuthService) MiniAppLogin(ctx context.Context, req models.MiniAppLoginRequest) (*models.LoginResponse, error) {
	identity, err := s.verifier.VerifyMiniAppLogin(req.InitData)
	if err != nil {
		s.recordTelegram(telegram.TransportMiniApp, err, "")
		return nil, err
	}
	return s.telegramSession(ctx, telegram.TransportMiniApp, identity, strings.TrimSpace(req.PhoneNumber))
}

// InitDeepLink starts a bot login.
func (s *AuthService) InitDeepLink(ctx context.Context) (*models.DeepLinkInit, error) {
	token, link, err := s.broker.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	return &models.DeepLinkInit{
		Token:     token,
		DeepLink:  link,
		ExpiresIn: int(s.broker.TTL().Seconds()),
	}, nil
}

// DeepLinkStatus reports whether the bot has confirmed the login. A
// confirmed session is exchanged for a token exactly once.
func (s *AuthService) DeepLinkStatus(ctx context.Context, token string) (*models.DeepLinkStatus, error) {
	session, err := s.broker.ConsumeSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.Completed() {
		return &models.DeepLinkStatus{Completed: false, Message: msgSessionPending}, nil
	}
	if session.User == nil {
		return nil, telegram.ErrSessionNotFound
	}

	resp, err := s.telegramSession(ctx, telegram.TransportDeepLink, *session.User, "")
	if err != nil {
		return nil, err
	}
	return &models.DeepLinkStatus{Completed: true, Message: resp.Message, User: &resp.User}, nil
}

func (s *AuthService) telegramSession(ctx context.Context, transport string, identity telegram.Identity, phone string) (*models.LoginResponse, error) {
	user, err := s.reconciler.Reconcile(ctx, identity, phone)
	if err != nil {
		s.recordTelegram(transport, err, "")
		return nil, err
	}
	resp, err := s.session(user, msgTelegramLogin)
	if err != nil {
		return nil, err
	}
	s.recordTelegram(transport, nil, user.ID)
	return resp, nil
}

func (s *AuthService) recordTelegram(transport string, err error, userID string) {
	outcome := telegram.Outcome(err)
	// Deep-link completions are counted by the dispatcher.
	if transport != telegram.TransportDeepLink {
		telegram.RecordAttempt(transport, outcome)
	}
	s.logger.LogAuthEvent(transport, outcome, userID)
}

func (s *AuthService) session(user *models.User, message string) (*models.LoginResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		Message: message,
		User: models.SessionUser{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
			PhotoURL: user.PhotoURL,
			Token:    token,
		},
	}, nil
}
