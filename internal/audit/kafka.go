package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"onpaku/internal/platform/config"
)

// KafkaPublisher writes audit events to a Kafka topic, keyed by email so
// one user's trail stays ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
}

func NewKafkaPublisher(cfg config.AuditConfig) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.Email),
		Value: payload,
	}
	p.client.Produce(ctx, record, nil)
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
