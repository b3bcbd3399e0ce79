package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus fans lifecycle events out over redis pub/sub. Channels are scoped by
// audience: client:<id>, request:<id>, technician:<id>, and admins.
type Bus struct {
	rdb   *redis.Client
	log   *zap.Logger
	ctx   context.Context
	wsHub WSHub
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{
		rdb: rdb,
		log: log,
		ctx: context.Background(),
	}
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// PublishClient publishes an event to a client's channel
func (b *Bus) PublishClient(clientID string, event map[string]interface{}) error {
	return b.Publish("client:"+clientID, event)
}

// PublishRequest publishes an event to a request's channel
func (b *Bus) PublishRequest(requestID string, event map[string]interface{}) error {
	return b.Publish("request:"+requestID, event)
}

// PublishTechnician publishes an event to a technician's channel
func (b *Bus) PublishTechnician(technicianID string, event map[string]interface{}) error {
	return b.Publish("technician:"+technicianID, event)
}

// PublishAdmins publishes an event to the shared admin channel
func (b *Bus) PublishAdmins(event map[string]interface{}) error {
	return b.Publish("admins", event)
}

// Publish publishes an event to a channel
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
		b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	if b.wsHub != nil {
		b.wsHub.Publish(channel, event)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.String("event", string(data)))
	return nil
}
