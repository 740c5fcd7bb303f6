package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// Bus routes envelopes to one producer per topic.
type Bus struct {
	producers map[string]*Producer
}

func NewBus(ps ...*Producer) *Bus {
	b := &Bus{producers: make(map[string]*Producer, len(ps))}
	for _, p := range ps {
		b.producers[p.Topic()] = p
	}
	return b
}

// Publish writes synchronously so callers can fail their request when the
// event was not accepted.
func (b *Bus) Publish(ctx context.Context, topic string, key []byte, eventType string, version int, value []byte) error {
	p, ok := b.producers[topic]
	if !ok {
		return fmt.Errorf("no producer for topic %s", topic)
	}
	return p.PublishSync(ctx, key, value, headers(eventType, version)...)
}

// PublishAsync queues the message; used for events nobody must wait on.
func (b *Bus) PublishAsync(topic string, key []byte, eventType string, version int, value []byte) error {
	p, ok := b.producers[topic]
	if !ok {
		return fmt.Errorf("no producer for topic %s", topic)
	}
	p.Publish(key, value, headers(eventType, version)...)
	return nil
}

func headers(eventType string, version int) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(version))},
	}
}

func (b *Bus) Close() {
	for _, p := range b.producers {
		p.Close()
	}
	for _, p := range b.producers {
		p.WaitClosed()
	}
}
