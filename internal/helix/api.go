package helix

import (
	"context"

	kappopher "github.com/Its-donkey/kappopher/helix"
)

// TwitchAPI is the subset of the kappopher Helix client the relay calls.
type TwitchAPI interface {
	GetConduits(ctx context.Context) ([]kappopher.Conduit, error)
	CreateConduit(ctx context.Context, shardCount int) (*kappopher.Conduit, error)
	UpdateConduitShards(ctx context.Context, params *kappopher.UpdateConduitShardsParams) (*kappopher.UpdateConduitShardsResponse, error)
	CreateEventSubSubscription(ctx context.Context, params *kappopher.CreateEventSubSubscriptionParams) (*kappopher.EventSubSubscription, error)
}

// appClient adapts *kappopher.Client to TwitchAPI. Requests are authorized
// with the app token held by the AuthClient it was built with.
type appClient struct {
	client *kappopher.Client
}

// NewTwitchAPI builds the app-scoped Helix client. authClient must be the
// one the relay's AppCredential refreshes, so both see the same token.
func NewTwitchAPI(clientID string, authClient *kappopher.AuthClient) TwitchAPI {
	return &appClient{client: kappopher.NewClient(clientID, authClient)}
}

func (a *appClient) GetConduits(ctx context.Context) ([]kappopher.Conduit, error) {
	resp, err := a.client.GetConduits(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (a *appClient) CreateConduit(ctx context.Context, shardCount int) (*kappopher.Conduit, error) {
	return a.client.CreateConduit(ctx, shardCount)
}

func (a *appClient) UpdateConduitShards(ctx context.Context, params *kappopher.UpdateConduitShardsParams) (*kappopher.UpdateConduitShardsResponse, error) {
	return a.client.UpdateConduitShards(ctx, params)
}

func (a *appClient) CreateEventSubSubscription(ctx context.Context, params *kappopher.CreateEventSubSubscriptionParams) (*kappopher.EventSubSubscription, error) {
	return a.client.CreateEventSubSubscription(ctx, params)
}
