package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/adminboard/backend-api/internal/api/handlers"
	"github.com/adminboard/backend-api/internal/auth"
	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/adminboard/backend-api/internal/services/distributedlock"
	"github.com/adminboard/backend-api/internal/telegram"
	"github.com/adminboard/backend-api/internal/testutil"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testBotToken      = "987654:ROUTES-test-token"
	testWebhookSecret = "webhook-secret"
)

type recordingBot struct {
	mu   sync.Mutex
	sent []string
}

func (b *recordingBot) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *recordingBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, text)
	return nil
}

type testServer struct {
	router *gin.Engine
	users  *database.UserRepository
	tokens *auth.TokenIssuer
	bot    *recordingBot
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewSQLiteDB(t)
	users := database.NewUserRepository(db)
	tokens, err := auth.NewTokenIssuer(testutil.GenerateTestSecret(), 5*time.Hour)
	require.NoError(t, err)

	broker := telegram.NewBroker(telegram.NewMemoryStore(), telegram.BrokerConfig{BotUsername: "admin_board_bot"}, nil)
	bot := &recordingBot{}
	authService := services.NewAuthService(services.AuthServiceDeps{
		Users:      users,
		Tokens:     tokens,
		Verifier:   telegram.NewVerifier(testBotToken, 0, 0),
		Broker:     broker,
		Reconciler: telegram.NewReconciler(users, distributedlock.NewKeyedMutex(), models.RoleViewer, nil),
		BcryptCost: bcrypt.MinCost,
	})

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Auth:           authService,
		Users:          services.NewUserService(users),
		Catalog:        services.NewCatalogService(database.NewCategoryRepository(db), database.NewProductRepository(db)),
		Tokens:         tokens,
		DB:             db,
		Dispatcher:     telegram.NewDispatcher(broker, bot, nil),
		WebhookSecret:  testWebhookSecret,
		TelegramMode:   "webhook",
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &testServer{router: router, users: users, tokens: tokens, bot: bot}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) tokenFor(t *testing.T, role models.Role) string {
	t.Helper()
	email := string(role) + "@example.com"
	user := &models.User{Username: "user_" + string(role), Email: &email, Provider: models.ProviderPassword, Role: role}
	require.NoError(t, s.users.Create(t.Context(), user))
	token, err := s.tokens.Issue(user)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRoutes_Probes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	health := decode[handlers.HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "webhook", health.Services["telegram"])

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/live", "", nil).Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRoutes_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice", "email": "Alice@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[models.RegisterResponse](t, w)
	assert.Equal(t, "User registered successfully.", reg.Message)
	assert.Equal(t, models.RoleViewer, reg.User.Role)
	assert.NotContains(t, w.Body.String(), "secret1")

	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "mallory", "email": "m@example.com", "password": "secret1", "role": "Admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := s.tokenFor(t, models.RoleAdmin)
	w = s.do(t, http.MethodPost, "/api/auth/register", admin, gin.H{
		"username": "ed", "email": "ed@example.com", "password": "secret1", "role": "Editor",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[models.LoginResponse](t, w)
	assert.Equal(t, "alice", login.User.Username)
	claims, err := s.tokens.Parse(login.User.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, claims.Role)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Incorrect password."}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"This user not found."}`, w.Body.String())
}

func signWidget(fields map[string]string) map[string]string {
	key := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(telegram.DataCheckString(fields)))
	fields["hash"] = hex.EncodeToString(mac.Sum(nil))
	return fields
}

func TestRoutes_TelegramWidgetLogin(t *testing.T) {
	s := newTestServer(t)
	authDate := time.Now().Unix()

	fields := signWidget(map[string]string{
		"id":         "4242",
		"first_name": "Tele",
		"username":   "tele_user",
		"auth_date":  strconv.FormatInt(authDate, 10),
	})
	// Numbers are sent as JSON numbers, the way the widget callback does.
	body := map[string]any{
		"id":         4242,
		"first_name": fields["first_name"],
		"username":   fields["username"],
		"auth_date":  authDate,
		"hash":       fields["hash"],
	}

	w := s.do(t, http.MethodPost, "/api/auth/telegram-login", "", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.LoginResponse](t, w)
	assert.Equal(t, "tele_user", resp.User.Username)
	assert.Equal(t, models.RoleViewer, resp.User.Role)

	body["first_name"] = "Tampered"
	w = s.do(t, http.MethodPost, "/api/auth/telegram-login", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	delete(body, "hash")
	w = s.do(t, http.MethodPost, "/api/auth/telegram-login", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stale := signWidget(map[string]string{
		"id":        "4242",
		"auth_date": strconv.FormatInt(authDate-301, 10),
	})
	w = s.do(t, http.MethodPost, "/api/auth/telegram-login", "", stale)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestRoutes_DeepLinkFlowOverWebhook(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/auth/telegram-init", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	started := decode[models.DeepLinkInit](t, w)
	assert.Equal(t, "https://t.me/admin_board_bot?start=auth_"+started.Token, started.DeepLink)

	w = s.do(t, http.MethodGet, "/api/auth/telegram-status/"+started.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.DeepLinkStatus](t, w).Completed)

	update := tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: 777, FirstName: "Deep", UserName: "deep_user"},
			Chat:      &tgbotapi.Chat{ID: 777, Type: "private"},
			Text:      "/start auth_" + started.Token,
		},
	}

	w = s.do(t, http.MethodPost, "/api/telegram/webhook", "", update)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", bytes.NewReader(mustJSON(t, update)))
	req.Header.Set(handlers.SecretTokenHeader, testWebhookSecret)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.bot.sent, 1)

	w = s.do(t, http.MethodGet, "/api/auth/telegram-status/"+started.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.DeepLinkStatus](t, w)
	require.True(t, status.Completed)
	require.NotNil(t, status.User)
	assert.Equal(t, "deep_user", status.User.Username)
	assert.NotEmpty(t, status.User.Token)

	w = s.do(t, http.MethodGet, "/api/auth/telegram-status/"+started.Token, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRoutes_UserPhone(t *testing.T) {
	s := newTestServer(t)
	viewer := s.tokenFor(t, models.RoleViewer)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/users/me", "", nil).Code)

	w := s.do(t, http.MethodPut, "/api/users/phone", viewer, gin.H{"phone_number": "+1 555-0100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Phone number updated successfully.")

	w = s.do(t, http.MethodPut, "/api/users/phone", viewer, gin.H{"phone_number": "call me"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/me", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, w)
	require.NotNil(t, me.PhoneNumber)
	assert.Equal(t, "+1 555-0100", *me.PhoneNumber)
}

func TestRoutes_CatalogAuthorization(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, models.RoleAdmin)
	editor := s.tokenFor(t, models.RoleEditor)
	viewer := s.tokenFor(t, models.RoleViewer)

	w := s.do(t, http.MethodGet, "/api/productCategories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/productCategories", "", gin.H{"name": "Drinks"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/productCategories", viewer, gin.H{"name": "Drinks"}).Code)

	w = s.do(t, http.MethodPost, "/api/productCategories", editor, gin.H{"name": "Drinks"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	category := decode[models.ProductCategory](t, w)

	w = s.do(t, http.MethodPost, "/api/productCategories", editor, gin.H{"name": "Drinks"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/products", editor, gin.H{
		"productName": "Iced coffee", "price": "2.50", "image": "coffee.png", "category": category.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decode[models.Product](t, w)
	assert.Equal(t, category.ID, product.CategoryID)

	w = s.do(t, http.MethodPost, "/api/products", editor, gin.H{
		"productName": "Ghost", "price": "1", "image": "x.png", "category": "missing",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/products?category="+category.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Product](t, w), 1)

	w = s.do(t, http.MethodPut, "/api/products/"+product.ID, editor, gin.H{
		"productName": "Hot coffee", "price": "3", "image": "coffee.png", "category": category.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hot coffee", decode[models.Product](t, w).ProductName)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/api/products/"+product.ID, editor, nil).Code)

	w = s.do(t, http.MethodDelete, "/api/productCategories/"+category.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/api/products/"+product.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Product deleted successfully"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/products/"+product.ID, "", nil).Code)

	w = s.do(t, http.MethodDelete, "/api/productCategories/"+category.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Category deleted successfully"}`, w.Body.String())
}
