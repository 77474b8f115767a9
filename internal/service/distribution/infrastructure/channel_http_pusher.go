// internal/service/distribution/infrastructure/channel_http_pusher.go
package infrastructure

import (
	"context"

	"tripnexus/internal/pkg/httpclient"
	"tripnexus/internal/service/distribution/domain"
	"tripnexus/internal/service/distribution/domain/port"

	"github.com/pkg/errors"
)

// HTTPChannelPusher 通过HTTP把快照批量推送给渠道端点，实现 port.ChannelPusher。
type HTTPChannelPusher struct {
	client *httpclient.Client
}

func NewHTTPChannelPusher(client *httpclient.Client) *HTTPChannelPusher {
	return &HTTPChannelPusher{client: client}
}

var _ port.ChannelPusher = (*HTTPChannelPusher)(nil)

type pushPayload struct {
	Channel   string                     `json:"channel"`
	Snapshots []domain.InventorySnapshot `json:"snapshots"`
}

type pushResponse struct {
	Accepted int    `json:"accepted"`
	Message  string `json:"message"`
}

func (p *HTTPChannelPusher) Push(ctx context.Context, channel domain.Channel, snapshots []domain.InventorySnapshot) error {
	if channel.Endpoint == "" {
		return errors.Errorf("channel %s has no endpoint configured", channel.Name)
	}
	payload := pushPayload{Channel: channel.Name, Snapshots: snapshots}
	var resp pushResponse
	if err := p.client.PostJSON(ctx, channel.Endpoint, payload, &resp); err != nil {
		return errors.Wrapf(err, "push %d snapshots to channel %s", len(snapshots), channel.Name)
	}
	return nil
}
