// Package kafkastream publishes loom lifecycle events to Kafka topics.
package kafkastream

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/loomworks/loom"
)

// New returns a streamer that writes lifecycle events to the given brokers.
func New(brokers []string) *Streamer {
	return &Streamer{
		brokers: brokers,
	}
}

var _ loom.EventStreamer = (*Streamer)(nil)

type Streamer struct {
	brokers []string
}

func (s *Streamer) NewSender(ctx context.Context, topic string) (loom.EventSender, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(s.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	return &Sender{writer: writer}, nil
}

var _ loom.EventSender = (*Sender)(nil)

type Sender struct {
	writer *kafka.Writer
}

func (s *Sender) Send(ctx context.Context, instanceID string, status loom.Status, headers map[loom.Header]string) error {
	kHeaders := make([]kafka.Header, 0, len(headers))
	for key, value := range headers {
		kHeaders = append(kHeaders, kafka.Header{
			Key:   string(key),
			Value: []byte(value),
		})
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(instanceID),
		Value:   []byte(strconv.Itoa(int(status))),
		Headers: kHeaders,
	})
}

func (s *Sender) Close() error {
	return s.writer.Close()
}
