package eventsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
	"github.com/Guliveer/twitch-eventsub-relay/internal/helix"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
	"github.com/Guliveer/twitch-eventsub-relay/internal/workerpool"
)

// HelixAPI is the subset of the Helix API the coordinator needs. Requests
// are authorized by the app token last issued through the AuthClient the
// API was built on.
type HelixAPI interface {
	GetConduits(ctx context.Context) ([]model.Conduit, error)
	CreateConduit(ctx context.Context, shardCount int) (model.Conduit, error)
	UpdateConduitShards(ctx context.Context, conduitID string, shards []model.Shard) (*helix.UpdateShardsResult, error)
	CreateEventSubSubscription(ctx context.Context, spec model.SubscriptionSpec, conduitID string) (*model.Subscription, error)
}

// errNoToken is returned when a Helix operation is attempted without a
// current app token.
var errNoToken = errors.New("no app access token")

func requireToken(token model.Token) error {
	if token.Value == "" {
		return errNoToken
	}
	return nil
}

// Coordinator keeps the conduit, its shard binding, and the subscription set
// in the state the relay needs.
type Coordinator struct {
	api        HelixAPI
	shardCount int
	workers    int
	log        *logger.Logger
}

// NewCoordinator creates a Coordinator. A shardCount below one falls back to
// constants.DefaultShardCount.
func NewCoordinator(api HelixAPI, shardCount int, log *logger.Logger) *Coordinator {
	if shardCount < 1 {
		shardCount = constants.DefaultShardCount
	}
	return &Coordinator{
		api:        api,
		shardCount: shardCount,
		workers:    constants.SubscriptionWorkers,
		log:        log,
	}
}

// EnsureConduit adopts the first conduit owned by the app, creating one when
// none exists. token must be the current app token.
func (c *Coordinator) EnsureConduit(ctx context.Context, token model.Token) (model.Conduit, error) {
	if err := requireToken(token); err != nil {
		return model.Conduit{}, err
	}

	conduits, err := c.api.GetConduits(ctx)
	if err != nil {
		return model.Conduit{}, err
	}

	if len(conduits) > 0 {
		conduit := conduits[0]
		c.log.Info("Using existing conduit", "conduit_id", conduit.ID, "shards", conduit.ShardCount)
		if len(conduits) > 1 {
			c.log.Warn("Multiple conduits found, only the first is managed", "count", len(conduits))
		}
		return conduit, nil
	}

	return c.api.CreateConduit(ctx, c.shardCount)
}

// EnsureSubscriptions creates every spec on the conduit. A subscription that
// already exists counts as created. The first other failure aborts the run
// and is returned.
func (c *Coordinator) EnsureSubscriptions(ctx context.Context, conduit model.Conduit, specs []model.SubscriptionSpec, token model.Token) error {
	if err := requireToken(token); err != nil {
		return err
	}

	err := workerpool.Run(ctx, specs, c.workers, func(ctx context.Context, spec model.SubscriptionSpec) error {
		sub, err := c.api.CreateEventSubSubscription(ctx, spec, conduit.ID)
		switch {
		case helix.IsConflict(err):
			c.log.Debug("Already subscribed", "topic", spec.Topic, "broadcaster", spec.Condition.BroadcasterUserID)
			return nil
		case err != nil:
			return err
		}
		c.log.Info("Subscribed", "topic", spec.Topic,
			"broadcaster", spec.Condition.BroadcasterUserID, "subscription_id", sub.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensuring subscriptions on conduit %s: %w", conduit.ID, err)
	}

	c.log.Info("Subscriptions in place", "conduit_id", conduit.ID, "count", len(specs))
	return nil
}

// RepointShard binds shard shardIndex of the conduit to sessionID.
func (c *Coordinator) RepointShard(ctx context.Context, conduit model.Conduit, shardIndex int, sessionID string, token model.Token) error {
	if err := requireToken(token); err != nil {
		return err
	}
	shard := model.NewWebSocketShard(shardIndex, sessionID)

	result, err := c.api.UpdateConduitShards(ctx, conduit.ID, []model.Shard{shard})
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, fmt.Sprintf("shard %s: %s (%s)", e.ID, e.Message, e.Code))
		}
		return fmt.Errorf("repointing conduit %s: %s", conduit.ID, strings.Join(msgs, "; "))
	}

	c.log.Info("Shard bound to session", "conduit_id", conduit.ID, "shard", shard.ID, "session_id", sessionID)
	return nil
}
