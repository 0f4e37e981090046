package service

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	scaffold "github.com/metanet-platform/scaffold-app"
)

// EventChannel is the redis pub/sub channel that carries directory
// lifecycle events to realtime subscribers.
const EventChannel = "scaffold:events"

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event scaffold.Event) error {
	ctx, span := tracer.Start(ctx, "Signal.Service.Publish")
	defer span.End()

	jsonstr, err := json.Marshal(event)
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to marshal event"))
		return err
	}

	err = s.rdb.Publish(ctx, EventChannel, jsonstr).Err()
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to publish event"))
		return err
	}

	return nil
}

// Subscribe opens a pub/sub subscription on the event channel. The
// returned channel closes when ctx is cancelled.
func (s *SignalService) Subscribe(ctx context.Context) (<-chan scaffold.Event, error) {
	pubsub := s.rdb.Subscribe(ctx, EventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to event channel")
	}

	events := make(chan scaffold.Event)
	go func() {
		defer close(events)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event scaffold.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
