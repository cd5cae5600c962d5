// Package pubsub publishes delivery notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chopmart/chopmart-backend/pkg/config"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub notification topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Message is one outbound publish. Messages sharing an OrderingKey are
// delivered in publish order when ordering is enabled on the client.
type Message struct {
	Data        []byte
	Attributes  map[string]string
	OrderingKey string
}

// Client owns a single publisher for the notification topic.
type Client struct {
	client    *pubsub.Client
	topic     string
	ordered   bool
	publisher *pubsub.Publisher
	logg      *logger.Logger
}

// NewClient connects, makes sure the topic exists (creating it when
// cfg.CreateTopic is set, as with the local emulator) and prepares the
// publisher with the configured batching.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	topic := TopicResourceName(gcp.ProjectID, cfg.NotificationTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client for %s: %w", gcp.ProjectID, err)
	}
	c := &Client{client: psClient, topic: topic, ordered: cfg.OrderedDelivery, logg: logg}
	if err := c.ensureTopic(ctx, cfg.CreateTopic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	pub := psClient.Publisher(topic)
	pub.EnableMessageOrdering = cfg.OrderedDelivery
	if cfg.PublishDelay > 0 {
		pub.PublishSettings.DelayThreshold = cfg.PublishDelay
	}
	if cfg.PublishBatchSize > 0 {
		pub.PublishSettings.CountThreshold = cfg.PublishBatchSize
	}
	c.publisher = pub

	logg.Info(logg.WithFields(ctx, map[string]any{
		"topic":   topic,
		"ordered": cfg.OrderedDelivery,
	}), "pubsub.publisher_ready")
	return c, nil
}

func (c *Client) ensureTopic(ctx context.Context, create bool) error {
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %s: %w", c.topic, err)
	case !create:
		return fmt.Errorf("topic %s does not exist", c.topic)
	}
	_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: c.topic})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %s: %w", c.topic, err)
	}
	c.logg.Info(c.logg.WithField(ctx, "topic", c.topic), "pubsub.topic_created")
	return nil
}

// Publish sends msg and blocks until the server acks it. A failed ordered
// publish pauses its key, so the key is resumed before returning the error.
func (c *Client) Publish(ctx context.Context, msg Message) (string, error) {
	if c == nil || c.publisher == nil {
		return "", errNotInitialized
	}
	out := &pubsub.Message{Data: msg.Data, Attributes: msg.Attributes}
	if c.ordered {
		out.OrderingKey = msg.OrderingKey
	}
	id, err := c.publisher.Publish(ctx, out).Get(ctx)
	if err != nil {
		if out.OrderingKey != "" {
			c.publisher.ResumePublish(out.OrderingKey)
		}
		return "", fmt.Errorf("publishing to %s: %w", c.topic, err)
	}
	return id, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.ensureTopic(ctx, false)
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

// TopicResourceName expands a bare topic id into projects/<p>/topics/<id>.
// Fully qualified names pass through untouched.
func TopicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
