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

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNothingRequired   = errors.New("pubsub client needs at least one topic or subscription")
	errClosed            = errors.New("pubsub client not initialized")
)

// Resources lists the topics and subscriptions a process cannot run without.
// They are checked at startup and on every readiness ping.
type Resources struct {
	Topics        []string
	Subscriptions []string
}

// PublisherResources is what the outbox publisher writes to.
func PublisherResources(cfg config.PubSubConfig) Resources {
	return Resources{Topics: nonBlank(cfg.OrdersTopic, cfg.PaymentsTopic, cfg.InventoryTopic)}
}

// WorkerResources is what the notification worker pulls from.
func WorkerResources(cfg config.PubSubConfig) Resources {
	return Resources{Subscriptions: nonBlank(cfg.NotificationSubscription)}
}

func (r Resources) empty() bool {
	return len(r.Topics) == 0 && len(r.Subscriptions) == 0
}

type existsFunc func(ctx context.Context, fullName string) error

// Client wraps the Pub/Sub v2 client with project-relative naming.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  Resources

	topicExists        existsFunc
	subscriptionExists existsFunc
}

// NewClient dials Pub/Sub and fails fast when a required resource is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, required Resources, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if required.empty() {
		return nil, errNothingRequired
	}
	ps, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:    ps,
		projectID: projectID,
		cfg:       cfg,
		required:  required,
		topicExists: func(ctx context.Context, name string) error {
			_, err := ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
			return err
		},
		subscriptionExists: func(ctx context.Context, name string) error {
			_, err := ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
			return err
		},
	}
	if err := c.verify(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":       projectID,
			"topics":        required.Topics,
			"subscriptions": required.Subscriptions,
		}), "pubsub.connected")
	}
	return c, nil
}

func (c *Client) verify(ctx context.Context) error {
	for _, topic := range c.required.Topics {
		if err := lookup(ctx, c.topicExists, "topic", topic, c.resourceName("topics", topic)); err != nil {
			return err
		}
	}
	for _, sub := range c.required.Subscriptions {
		if err := lookup(ctx, c.subscriptionExists, "subscription", sub, c.resourceName("subscriptions", sub)); err != nil {
			return err
		}
	}
	return nil
}

func lookup(ctx context.Context, exists existsFunc, kind, name, fullName string) error {
	if fullName == "" {
		return fmt.Errorf("%s %q not configured", kind, name)
	}
	err := exists(ctx, fullName)
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, fullName)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, fullName, err)
	}
}

// Subscription accepts a short id or a full projects/.../subscriptions/... name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName("subscriptions", name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher accepts a short topic id or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName("topics", name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.topicExists == nil {
		return errClosed
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an id to projects/<project>/<collection>/<id>. Names
// already qualified for the same collection pass through.
func (c *Client) resourceName(collection, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + collection + "/" + name
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
