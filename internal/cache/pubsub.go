package cache

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

// Subscribe consumes the live candidate feed until ctx is done.
func (r *RedisCache) Subscribe(ctx context.Context, handler func(*models.TokenCandidate)) error {
	pubsub := r.client.Subscribe(ctx, constants.PubSubChannelTokens)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var c models.TokenCandidate
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				logrus.WithError(err).WithField("channel", msg.Channel).Warn("skipping malformed candidate")
				continue
			}
			handler(&c)
		}
	}
}
