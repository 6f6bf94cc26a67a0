package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UpdateHandler consumes one update. It must not block on slow work.
type UpdateHandler func(ctx context.Context, u Update)

// Poller drives getUpdates long polling.
type Poller struct {
	client  *Client
	timeout time.Duration
	backoff time.Duration
	handle  UpdateHandler
	log     zerolog.Logger
}

func NewPoller(client *Client, timeout time.Duration, handle UpdateHandler, logger zerolog.Logger) *Poller {
	return &Poller{
		client:  client,
		timeout: timeout,
		backoff: 3 * time.Second,
		handle:  handle,
		log:     logger.With().Str("component", "telegram-poller").Logger(),
	}
}

// Run polls until ctx is cancelled. Transport errors are logged and retried
// after a pause; they never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	p.log.Info().Dur("timeout", p.timeout).Msg("polling started")
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info().Msg("polling stopped")
				return nil
			}
			p.log.Warn().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}
		for _, u := range updates {
			p.handle(ctx, u)
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
		}
	}
}
