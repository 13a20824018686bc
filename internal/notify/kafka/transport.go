// Package kafka implements the notification transport on a Kafka topic.
// Messages are keyed by recipient so one admin's notifications stay ordered
// within a partition; across recipients there is no ordering guarantee,
// matching the dispatcher's at-most-once contract.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	id "bunkhouse/pkg/domain"
)

// Transport produces notification records to one topic.
type Transport struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the topic exists. Topic creation
// failures other than "already exists" abort startup: a missing topic would
// silently drop every notification.
func New(ctx context.Context, brokers []string, topic string) (*Transport, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resps, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
		}
	}

	return &Transport{client: client, topic: topic}, nil
}

func (t *Transport) Send(ctx context.Context, recipient id.PrincipalID, payload []byte) error {
	record := &kgo.Record{
		Topic: t.topic,
		Key:   []byte(recipient.String()),
		Value: payload,
	}
	if err := t.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (t *Transport) Close() {
	t.client.Close()
}
