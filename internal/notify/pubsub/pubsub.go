// Package pubsub publishes aggregated reports to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// Notifier publishes the report JSON to a topic.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to projectID and checks that topicID exists.
func New(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Notifier, error) {
	if projectID == "" || topicID == "" {
		return nil, errors.New("pubsub: project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &Notifier{client: client, topic: topic}, nil
}

type payload struct {
	Subject string         `json:"subject"`
	Report  gazette.Report `json:"report"`
}

// Notify implements gazette.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg gazette.Message) error {
	data, err := json.Marshal(payload{Subject: msg.Subject, Report: msg.Report})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"run_id": msg.Report.RunID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (n *Notifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
