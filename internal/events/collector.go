package events

import (
	"context"
	"log/slog"

	"github.com/dangtom700/lexindex/pkg/kafka"
)

// Collector buffers events and publishes them to Kafka in the background so
// the query path never waits on the broker. When the buffer is full, events
// are dropped rather than blocking.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector with the given buffer size.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "event-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the background publish loop.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.producer.Publish(ctx, kafka.Event{Key: "lexindex", Value: event}); err != nil {
					c.logger.Error("failed to publish event", "error", err)
				}
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("event collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event for publishing; full buffers drop.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drain() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			if err := c.producer.Publish(context.Background(), kafka.Event{Key: "lexindex", Value: event}); err != nil {
				c.logger.Error("failed to publish remaining event", "error", err)
			}
		default:
			return
		}
	}
}
