// Package events mirrors room state changes onto Redis pub/sub so that other
// processes (bots, dashboards) can follow the room without a WebSocket.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 2 * time.Second

// Publisher sends room events to one Redis channel. A nil client makes it a no-op.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

func NewPublisher(rdb *redis.Client, roomName string) *Publisher {
	return &Publisher{rdb: rdb, channel: Channel(roomName)}
}

// Channel returns the pub/sub channel of a room: partyroom:<slug>:events.
func Channel(roomName string) string {
	return "partyroom:" + slug(roomName) + ":events"
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "default"
	}
	return s
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (p *Publisher) Channel() string { return p.channel }

func (p *Publisher) Publish(ctx context.Context, ev core.Event) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// Run publishes every event from events until the channel closes or ctx is done.
func (p *Publisher) Run(ctx context.Context, events <-chan core.Event) {
	if p == nil || p.rdb == nil {
		return
	}
	log.Info().Str("module", "adapters.events").Str("channel", p.channel).Msg("publishing room events")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := p.Publish(pctx, ev)
			cancel()
			if err != nil {
				metrics.EventPublishErrors.Inc()
				log.Warn().Err(err).Str("module", "adapters.events").Str("kind", string(ev.Kind)).Msg("publish failed")
			}
		}
	}
}
