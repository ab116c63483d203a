// Package kafka provides a broker-backed audit sink. Kafka is the source of
// truth for audit events in deployments that configure brokers; consumers
// downstream materialize them for querying.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
)

// Store publishes audit events to a Kafka topic. It implements audit.Store
// as a produce-only sink: ListBySubject is answered by whatever consumer
// materializes the topic, not here.
type Store struct {
	client *kgo.Client
	topic  string
}

// payload is the JSON structure written to the topic. Field names are part
// of the consumer contract.
type payload struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Subject   string `json:"subject"`
	Height    uint64 `json:"height"`
	HashKey   string `json:"hash,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// New connects to the brokers and ensures the topic exists before any event
// is produced. A single-partition topic keeps per-registry ordering, which
// matches the registry's serialized execution model.
func New(ctx context.Context, brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("create audit topic %q: %w", res.Topic, res.Err)
		}
	}

	return &Store{client: client, topic: topic}, nil
}

// Append produces the event synchronously. Audit writes ride the request
// path only in sync publisher mode; async mode absorbs broker latency.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	p := payload{
		ID:        event.ID,
		Action:    event.Action,
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor.String(),
		Subject:   event.Subject,
		Height:    event.Height,
		HashKey:   event.HashKey,
		Amount:    event.Amount,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
	}
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListBySubject is not served by the producer side.
func (s *Store) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, sentinel.ErrUnavailable
}

// Close flushes buffered records and releases the client.
func (s *Store) Close() {
	s.client.Close()
}
