// Package realtime implements the Redis adapter of the delivery channel.
// Messages are published to a per-student Pub/Sub channel consumed by the
// WebSocket-room layer; delivery reaches only current subscribers, there is
// no replay.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/edubridge/mastery-graph/internal/domain/realtime"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
	"github.com/edubridge/mastery-graph/pkg/circuitbreaker"
)

// RedisChannel publishes realtime messages to per-student Redis channels.
//
// Push is time-bounded and guarded by a circuit breaker: a slow or downed
// Redis must not stall the assessment pipeline. Callers log the returned
// error and move on; the ledger write is already durable.
type RedisChannel struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// RedisChannelConfig contains configuration for RedisChannel.
type RedisChannelConfig struct {
	// ChannelPrefix is prepended to the student ID to form the channel
	// name (default: "mastery-graph:student:").
	ChannelPrefix string

	// PushTimeout bounds one publish (default: 2s).
	PushTimeout time.Duration

	// FailureThreshold opens the breaker after this many consecutive
	// failures (default: 5).
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open (default: 30s).
	RecoveryTimeout time.Duration
}

// DefaultRedisChannelConfig returns default configuration.
func DefaultRedisChannelConfig() RedisChannelConfig {
	return RedisChannelConfig{
		ChannelPrefix:    "mastery-graph:student:",
		PushTimeout:      2 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// NewRedisChannel creates a new RedisChannel.
func NewRedisChannel(client *redis.Client, logger *slog.Logger, config RedisChannelConfig) *RedisChannel {
	if config.ChannelPrefix == "" {
		config = DefaultRedisChannelConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.New("realtime-channel",
		circuitbreaker.WithFailureThreshold(config.FailureThreshold),
		circuitbreaker.WithTimeout(config.RecoveryTimeout),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		}),
	)

	return &RedisChannel{
		client:  client,
		prefix:  config.ChannelPrefix,
		timeout: config.PushTimeout,
		breaker: breaker,
		logger:  logger.With("component", "realtime_channel"),
	}
}

// Push implements realtime.Channel.
func (c *RedisChannel) Push(ctx context.Context, msg domain.Message) error {
	if msg.StudentID == "" {
		return shared.NewDomainError("realtime", "Push", shared.ErrInvalidInput, "student id is required")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return shared.WrapError("realtime", "Push", shared.ErrInvalidFormat, "marshal message", err)
	}

	channel := c.prefix + msg.StudentID

	pushCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err = c.breaker.Execute(pushCtx, func(ctx context.Context) error {
		return c.client.Publish(ctx, channel, data).Err()
	})
	if err != nil {
		if c.breaker.IsOpen() {
			return fmt.Errorf("%w: %v", shared.ErrChannelUnavailable, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrPropagationFailure, err)
	}
	return nil
}

var _ domain.Channel = (*RedisChannel)(nil)
