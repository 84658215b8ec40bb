package telegram

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adminboard/backend-api/internal/logging"
	"go.uber.org/zap"
)

const (
	DefaultSessionTTL    = 5 * time.Minute
	DefaultSweepInterval = 5 * time.Minute

	// StartPrefix precedes the session token in the /start payload.
	StartPrefix = "auth_"

	tokenBytes = 16
)

// BrokerConfig controls deep-link session timing.
type BrokerConfig struct {
	BotUsername   string
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Broker hands out deep-link login sessions and tracks their completion by
// the bot.
type Broker struct {
	store  SessionStore
	config BrokerConfig
	logger *logging.StandardLogger
	now    func() time.Time
}

// NewBroker wires a broker over the given store.
func NewBroker(store SessionStore, config BrokerConfig, logger *logging.StandardLogger) *Broker {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Broker{
		store:  store,
		config: config,
		logger: logger.WithComponent("telegram_broker"),
		now:    time.Now,
	}
}

// TTL is how long a session stays usable.
func (b *Broker) TTL() time.Duration {
	return b.config.SessionTTL
}

func (b *Broker) cutoff() time.Time {
	return b.now().Add(-b.config.SessionTTL)
}

// DeepLink builds the t.me link that opens the bot with the login payload.
func (b *Broker) DeepLink(token string) string {
	username := strings.TrimPrefix(b.config.BotUsername, "@")
	return fmt.Sprintf("https://t.me/%s?start=%s%s", username, StartPrefix, token)
}

// CreateSession stores a new pending session and returns its token and
// deep link.
func (b *Broker) CreateSession(ctx context.Context) (string, string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	session := PendingSession{
		Token:     token,
		Status:    StatusPending,
		CreatedAt: b.now().UTC(),
	}
	if err := b.store.Put(ctx, session); err != nil {
		return "", "", err
	}
	sessionsCreatedTotal.Inc()
	return token, b.DeepLink(token), nil
}

// CompleteSession attaches identity to a pending session. Only the first
// completion is recorded.
func (b *Broker) CompleteSession(ctx context.Context, token string, identity Identity) (CompletionResult, error) {
	result, err := b.store.Complete(ctx, token, identity, b.cutoff())
	if err != nil {
		return ResultNotFound, err
	}
	sessionsCompletedTotal.WithLabelValues(result.String()).Inc()
	return result, nil
}

// GetSession returns a snapshot of the session or ErrSessionNotFound.
func (b *Broker) GetSession(ctx context.Context, token string) (*PendingSession, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	return b.store.Get(ctx, token, b.cutoff())
}

// ConsumeSession returns the session and, once it is completed, removes it
// atomically. Of several concurrent callers on a completed token exactly one
// receives it; the rest get ErrSessionNotFound.
func (b *Broker) ConsumeSession(ctx context.Context, token string) (*PendingSession, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	return b.store.Consume(ctx, token, b.cutoff())
}

// RemoveSession deletes the session; unknown tokens are ignored.
func (b *Broker) RemoveSession(ctx context.Context, token string) error {
	return b.store.Delete(ctx, token)
}

// Sweep drops every session older than the TTL, whatever its status.
func (b *Broker) Sweep(ctx context.Context) (int, error) {
	removed, err := b.store.Sweep(ctx, b.cutoff())
	if removed > 0 {
		sessionsSweptTotal.Add(float64(removed))
	}
	return removed, err
}

// Run sweeps on every SweepInterval tick until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) {
	ticker := time.NewTicker(b.config.SweepInterval)
	defer ticker.Stop()

	b.logger.Info("Session sweeper started", zap.Duration("interval", b.config.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			removed, err := b.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				b.logger.WithError(err).Warn("Session sweep failed")
				continue
			}
			if removed > 0 {
				b.logger.Debug("Swept expired sessions", zap.Int("removed", removed))
			}
		}
	}
}
