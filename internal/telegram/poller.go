package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/adminboard/backend-api/internal/logging"
	"go.uber.org/zap"
)

const (
	DefaultPollTimeout = 30 * time.Second
	maxPollBackoff     = 30 * time.Second
)

// Poller feeds getUpdates results to a Dispatcher.
type Poller struct {
	bot         BotAPI
	dispatcher  *Dispatcher
	timeout     time.Duration
	baseBackoff time.Duration
	logger      *logging.StandardLogger
	offset      int
}

func NewPoller(bot BotAPI, dispatcher *Dispatcher, timeout time.Duration, logger *logging.StandardLogger) *Poller {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Poller{
		bot:         bot,
		dispatcher:  dispatcher,
		timeout:     timeout,
		baseBackoff: time.Second,
		logger:      logger.WithComponent("telegram_poller"),
	}
}

// Offset is the next update_id the poller will ask for.
func (p *Poller) Offset() int {
	return p.offset
}

// PollOnce fetches and dispatches one batch, advancing the offset past
// every update it saw.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	updates, err := p.bot.GetUpdates(ctx, p.offset, p.timeout)
	if err != nil {
		return 0, err
	}
	for _, u := range updates {
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		p.dispatcher.HandleUpdate(ctx, u)
	}
	return len(updates), nil
}

// Run polls until ctx is cancelled, backing off exponentially on errors.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Telegram poller started", zap.Duration("timeout", p.timeout))
	backoff := p.baseBackoff

	for {
		if ctx.Err() != nil {
			p.logger.Info("Telegram poller stopped")
			return
		}

		_, err := p.PollOnce(ctx)
		if err == nil {
			backoff = p.baseBackoff
			continue
		}
		if ctx.Err() != nil {
			continue
		}

		wait := backoff
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		p.logger.WithError(err).Warn("Telegram polling failed", zap.Duration("retry_in", wait))

		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		backoff *= 2
		if backoff > maxPollBackoff {
			backoff = maxPollBackoff
		}
	}
}
