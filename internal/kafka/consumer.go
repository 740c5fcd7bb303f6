package kafka

import (
	"context"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// DeadLetter receives messages that exhausted their attempts. *Producer satisfies it.
type DeadLetter interface {
	PublishSync(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	io.Closer
}

type Consumer struct {
	r       reader
	workers int

	// MaxAttempts bounds handler calls per message; after that the message is
	// dead-lettered (or logged) and committed. Zero means 8.
	MaxAttempts int
	// Backoff is the first retry delay, doubled up to 30s. Zero means 200ms.
	Backoff    time.Duration
	DeadLetter DeadLetter
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers)
}

func newConsumer(r reader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches messages and hands each partition to a single worker, so a
// partition's messages are handled and committed strictly in offset order.
// kafka-go keeps only the highest committed offset per partition, which makes
// out-of-order commits lose the earlier message.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()
	ctx, cancel := context.WithCancel(ctx)

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if ctx.Err() != nil {
					continue // drain; uncommitted messages are redelivered
				}
				c.process(ctx, h, m)
			}
		}(lanes[i])
	}
	defer func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}()
	// runs first so workers stuck in backoff return when the fetch loop exits
	defer cancel()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 8
	}

	err := c.retry(ctx, attempts, func() error { return h(ctx, m) }, func(err error, wait time.Duration) {
		log.Printf("[kafka] handler topic=%s partition=%d offset=%d: %v (retry in %s)",
			m.Topic, m.Partition, m.Offset, err, wait)
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("[kafka] handler topic=%s partition=%d offset=%d: giving up after %d attempts: %v",
			m.Topic, m.Partition, m.Offset, attempts, err)
		// the lane stays blocked until the message is parked, later offsets
		// must not be committed past it
		_ = c.retry(ctx, 0, func() error { return c.deadLetter(ctx, m, err) }, func(err error, wait time.Duration) {
			log.Printf("[kafka] dead-letter topic=%s offset=%d: %v (retry in %s)", m.Topic, m.Offset, err, wait)
		})
		if ctx.Err() != nil {
			return
		}
	}

	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.Printf("[kafka] commit topic=%s partition=%d offset=%d: %v", m.Topic, m.Partition, m.Offset, err)
	}
}

// retry calls fn until it succeeds, ctx ends, or attempts (if positive) run out.
func (c *Consumer) retry(ctx context.Context, attempts int, fn func() error, onRetry func(error, time.Duration)) error {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	for i := 1; ; i++ {
		err := fn()
		if err == nil || (attempts > 0 && i >= attempts) {
			return err
		}
		onRetry(err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	if c.DeadLetter == nil {
		log.Printf("[kafka] dropping topic=%s partition=%d offset=%d key=%s", m.Topic, m.Partition, m.Offset, m.Key)
		return nil
	}
	headers := append([]kafka.Header{
		{Key: "x-source-topic", Value: []byte(m.Topic)},
		{Key: "x-source-partition", Value: []byte(strconv.Itoa(m.Partition))},
		{Key: "x-source-offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
		{Key: "x-error", Value: []byte(cause.Error())},
	}, m.Headers...)
	return c.DeadLetter.PublishSync(ctx, m.Key, m.Value, headers...)
}
