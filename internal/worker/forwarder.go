package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sink receives serialized events under a queue key.
type Sink interface {
	Push(ctx context.Context, key string, payload []byte) error
}

// RedisSink appends payloads to the tail of Redis lists (RPUSH), so consumers read
// them in publish order with LPOP or BLPOP.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Push(ctx context.Context, key string, payload []byte) error {
	if s.client == nil {
		return errors.New("redis client is nil")
	}
	return s.client.RPush(ctx, key, payload).Err()
}

// deadLetter is what lands in the dead-letter list after all retries failed.
type deadLetter struct {
	Event    *events.Event `json:"event"`
	Error    string        `json:"error"`
	Attempts int           `json:"attempts"`
	FailedAt time.Time     `json:"failed_at"`
}

// EventForwarder relays booking events from the in-process bus to an external
// queue. Delivery happens on its own goroutine with exponential backoff; events
// that still fail after MaxRetries attempts go to the dead-letter key.
type EventForwarder struct {
	sink          Sink
	retryPolicy   RetryPolicy
	queue         chan *events.Event
	queueKey      string
	deadLetterKey string
	drainTimeout  time.Duration
	logger        *zerolog.Logger
}

func NewEventForwarder(sink Sink, queueKey, deadLetterKey string, retry RetryPolicy, logger *zerolog.Logger) *EventForwarder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventForwarder{
		sink:          sink,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan *events.Event, models.EventQueueSize),
		queueKey:      queueKey,
		deadLetterKey: deadLetterKey,
		drainTimeout:  5 * time.Second,
		logger:        logger,
	}
}

// Attach subscribes the forwarder to every booking event of bus.
func (f *EventForwarder) Attach(bus *events.EventBus) {
	bus.SubscribeBookings(f.Handle)
}

// Handle enqueues the event without blocking the publisher.
func (f *EventForwarder) Handle(event *events.Event) error {
	select {
	case f.queue <- event:
		return nil
	default:
		metrics.IncForwardedEvent("dropped")
		f.logger.Warn().Int64("event_id", event.ID).Str("type", event.Type).Msg("Event queue is full, event dropped")
		return fmt.Errorf("event queue is full, dropped %s", event.Type)
	}
}

// Start delivers queued events until ctx is done, then drains what is left
// with a single attempt per event.
func (f *EventForwarder) Start(ctx context.Context) {
	f.logger.Info().Str("queue", f.queueKey).Msg("Event forwarder started")
	defer f.logger.Info().Msg("Event forwarder stopped")

	for {
		select {
		case <-ctx.Done():
			f.drain()
			return
		case event := <-f.queue:
			f.deliver(ctx, event)
		}
	}
}

func (f *EventForwarder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), f.drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-f.queue:
			data, err := json.Marshal(event)
			if err == nil {
				err = f.sink.Push(ctx, f.queueKey, data)
			}
			if err != nil {
				f.deadLetter(ctx, event, err, 1)
			}
		default:
			return
		}
	}
}

func (f *EventForwarder) deliver(ctx context.Context, event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		f.deadLetter(ctx, event, fmt.Errorf("encode event: %w", err), 0)
		return
	}

	for attempt := 1; ; attempt++ {
		err = f.sink.Push(ctx, f.queueKey, data)
		if err == nil {
			metrics.IncForwardedEvent("ok")
			f.logger.Debug().Int64("event_id", event.ID).Str("type", event.Type).Int("attempt", attempt).Msg("Event forwarded")
			return
		}

		if attempt >= f.retryPolicy.MaxRetries {
			f.deadLetter(ctx, event, err, attempt)
			return
		}

		delay := f.retryPolicy.NextDelay(attempt)
		f.logger.Warn().Err(err).Int64("event_id", event.ID).Int("attempt", attempt).Dur("retry_in", delay).Msg("Event forward failed")
		if sleepCtx(ctx, delay) != nil {
			// остановка: событие будет отправлено при drain
			f.requeue(event)
			return
		}
	}
}

func (f *EventForwarder) requeue(event *events.Event) {
	select {
	case f.queue <- event:
	default:
		f.deadLetter(context.Background(), event, errors.New("shutdown with full queue"), 0)
	}
}

func (f *EventForwarder) deadLetter(ctx context.Context, event *events.Event, cause error, attempts int) {
	metrics.IncForwardedEvent("dead_letter")
	f.logger.Error().Err(cause).Int64("event_id", event.ID).Str("type", event.Type).Int("attempts", attempts).Msg("Event moved to dead letter")

	data, err := json.Marshal(deadLetter{Event: event, Error: cause.Error(), Attempts: attempts, FailedAt: time.Now()})
	if err != nil {
		f.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to encode dead letter")
		return
	}
	if err := f.sink.Push(ctx, f.deadLetterKey, data); err != nil {
		f.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to push dead letter")
	}
}
