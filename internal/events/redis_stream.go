package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventField = "event"

// RedisStreamConfig names the stream and consumer identity.
type RedisStreamConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Block bounds how long a read waits for new entries.
	Block time.Duration
	// BatchSize caps the entries read per round trip.
	BatchSize int64
}

// redisStreamDispatcher publishes events to a Redis stream and consumes them
// through a consumer group. An entry is acknowledged only after every
// handler has returned, so a worker that dies mid-run leaves the entry
// pending and picks it up again on restart.
type redisStreamDispatcher struct {
	client    redis.UniversalClient
	cfg       RedisStreamConfig
	logger    *zap.Logger
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewRedisStreamDispatcher builds a stream-backed dispatcher.
func NewRedisStreamDispatcher(client redis.UniversalClient, cfg RedisStreamConfig, logger *zap.Logger) Dispatcher {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	return &redisStreamDispatcher{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		listeners: make(map[EventType][]EventHandler),
	}
}

func (d *redisStreamDispatcher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.cfg.Stream,
		Values: map[string]any{eventField: data},
	}).Err()
}

func (d *redisStreamDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func (d *redisStreamDispatcher) Run(ctx context.Context) error {
	err := d.client.XGroupCreateMkStream(ctx, d.cfg.Stream, d.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	// Entries delivered to this consumer before a restart but never acked.
	for {
		n, err := d.consume(ctx, "0")
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}

	for ctx.Err() == nil {
		if _, err := d.consume(ctx, ">"); err != nil {
			if ctx.Err() != nil {
				break
			}
			d.logger.Warn("stream read failed", zap.String("stream", d.cfg.Stream), zap.Error(err))
			if err := sleepCtx(ctx, time.Second); err != nil {
				break
			}
		}
	}
	return nil
}

// consume reads one batch starting at start and handles it concurrently.
func (d *redisStreamDispatcher) consume(ctx context.Context, start string) (int, error) {
	streams, err := d.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    d.cfg.Group,
		Consumer: d.cfg.Consumer,
		Streams:  []string{d.cfg.Stream, start},
		Count:    d.cfg.BatchSize,
		Block:    d.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	count := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			count++
			wg.Add(1)
			go func(message redis.XMessage) {
				defer wg.Done()
				d.handle(ctx, message)
			}(message)
		}
	}
	wg.Wait()
	return count, nil
}

func (d *redisStreamDispatcher) handle(ctx context.Context, message redis.XMessage) {
	logger := d.logger.With(zap.String("stream_id", message.ID))

	event, err := decodeStreamEvent(message)
	if err != nil {
		logger.Error("dropping undecodable stream entry", zap.Error(err))
	} else {
		deliver(ctx, logger, d.handlersFor(event.Type), event)
	}
	if ctx.Err() != nil {
		// Not acked; redelivered after restart.
		return
	}
	if err := d.client.XAck(ctx, d.cfg.Stream, d.cfg.Group, message.ID).Err(); err != nil {
		logger.Warn("unable to ack stream entry", zap.Error(err))
	}
}

func (d *redisStreamDispatcher) handlersFor(eventType EventType) []EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]EventHandler{}, d.listeners[eventType]...)
}

func decodeStreamEvent(message redis.XMessage) (Event, error) {
	var event Event
	raw, ok := message.Values[eventField]
	if !ok {
		return event, fmt.Errorf("missing %q field", eventField)
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return event, fmt.Errorf("unexpected %q field type %T", eventField, raw)
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return event, err
	}
	return event, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
