// Package helix adapts the kappopher Twitch Helix client to the relay's
// model: conduit management and EventSub subscription creation. Transient
// failures (429, 5xx, transport errors) are retried with exponential
// backoff; other failures surface as *kappopher.APIError.
package helix

import (
	"context"
	"errors"
	"fmt"
	"time"

	kappopher "github.com/Its-donkey/kappopher/helix"
	"github.com/cenkalti/backoff/v5"

	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the retry budget and the first backoff interval for
// transient failures.
func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(client *Client) {
		client.maxRetries = maxRetries
		client.initialBackoff = initialBackoff
	}
}

// Client maps Helix conduit and subscription calls onto model types.
type Client struct {
	api TwitchAPI
	log *logger.Logger

	maxRetries     int
	initialBackoff time.Duration
}

// NewClient wraps api.
func NewClient(api TwitchAPI, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		api:            api,
		log:            log,
		maxRetries:     constants.DefaultMaxRetries,
		initialBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConduits lists the conduits owned by the application.
func (c *Client) GetConduits(ctx context.Context) ([]model.Conduit, error) {
	conduits, err := retry(ctx, c, "GetConduits", func() ([]kappopher.Conduit, error) {
		return c.api.GetConduits(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("listing conduits: %w", err)
	}

	out := make([]model.Conduit, 0, len(conduits))
	for _, conduit := range conduits {
		out = append(out, model.Conduit{ID: conduit.ID, ShardCount: conduit.ShardCount})
	}
	return out, nil
}

// CreateConduit creates a conduit with shardCount shards.
func (c *Client) CreateConduit(ctx context.Context, shardCount int) (model.Conduit, error) {
	conduit, err := retry(ctx, c, "CreateConduit", func() (*kappopher.Conduit, error) {
		return c.api.CreateConduit(ctx, shardCount)
	})
	if err != nil {
		return model.Conduit{}, fmt.Errorf("creating conduit: %w", err)
	}
	if conduit == nil {
		return model.Conduit{}, errors.New("creating conduit: empty response")
	}

	c.log.Info("Created conduit", "conduit_id", conduit.ID, "shards", conduit.ShardCount)
	return model.Conduit{ID: conduit.ID, ShardCount: conduit.ShardCount}, nil
}

// ShardError is a per-shard failure reported by UpdateConduitShards.
type ShardError struct {
	ID      string
	Message string
	Code    string
}

// UpdateShardsResult is the outcome of UpdateConduitShards. Shards Helix
// refused are listed in Errors.
type UpdateShardsResult struct {
	Errors []ShardError
}

// UpdateConduitShards re-points the transports of the given shards.
func (c *Client) UpdateConduitShards(ctx context.Context, conduitID string, shards []model.Shard) (*UpdateShardsResult, error) {
	params := &kappopher.UpdateConduitShardsParams{
		ConduitID: conduitID,
		Shards:    make([]kappopher.UpdateConduitShardParams, 0, len(shards)),
	}
	for _, shard := range shards {
		params.Shards = append(params.Shards, kappopher.UpdateConduitShardParams{
			ID: shard.ID,
			Transport: kappopher.UpdateConduitShardTransport{
				Method:    shard.Transport.Method,
				SessionID: shard.Transport.SessionID,
			},
		})
	}

	resp, err := retry(ctx, c, "UpdateConduitShards", func() (*kappopher.UpdateConduitShardsResponse, error) {
		return c.api.UpdateConduitShards(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("updating shards of conduit %s: %w", conduitID, err)
	}

	result := &UpdateShardsResult{}
	if resp != nil {
		for _, e := range resp.Errors {
			result.Errors = append(result.Errors, ShardError{ID: e.ID, Message: e.Message, Code: e.Code})
		}
	}
	return result, nil
}

// CreateEventSubSubscription subscribes spec with the conduit as transport.
// A subscription that already exists comes back as a 409 *kappopher.APIError.
func (c *Client) CreateEventSubSubscription(ctx context.Context, spec model.SubscriptionSpec, conduitID string) (*model.Subscription, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	condition := map[string]string{"broadcaster_user_id": spec.Condition.BroadcasterUserID}
	if spec.Condition.UserID != "" {
		condition["user_id"] = spec.Condition.UserID
	}
	params := &kappopher.CreateEventSubSubscriptionParams{
		Type:      spec.Topic.String(),
		Version:   spec.Topic.Version(),
		Condition: condition,
		Transport: kappopher.CreateEventSubTransport{
			Method:    "conduit",
			ConduitID: conduitID,
		},
	}

	sub, err := retry(ctx, c, "CreateEventSubSubscription", func() (*kappopher.EventSubSubscription, error) {
		return c.api.CreateEventSubSubscription(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("creating subscription %s: %w", spec, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("creating subscription %s: empty response", spec)
	}

	return &model.Subscription{
		ID:      sub.ID,
		Type:    sub.Type,
		Version: sub.Version,
		Status:  sub.Status,
		Condition: model.SubscriptionCondition{
			BroadcasterUserID: sub.Condition["broadcaster_user_id"],
			UserID:            sub.Condition["user_id"],
		},
		ConduitID: conduitID,
	}, nil
}

// retry runs call until it succeeds, fails permanently, or the retry budget
// is spent.
func retry[T any](ctx context.Context, c *Client, op string, call func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.Reset()

	return backoff.Retry(ctx, func() (T, error) {
		v, err := call()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug("Retrying Helix request", "op", op, "error", err, "backoff", next)
		}),
	)
}
