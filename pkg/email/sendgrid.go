package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

const (
	sendEndpoint      = "/v3/mail/send"
	responseBodyLimit = 1024
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// SendgridClient delivers messages through the SendGrid v3 mail send API.
type SendgridClient struct {
	client  *rest.Client
	request rest.Request
	from    *mail.Email
}

// Option configures optional client behavior.
type Option func(*SendgridClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *SendgridClient) {
		if client != nil {
			c.client = &rest.Client{HTTPClient: client}
		}
	}
}

// NewSendgridClient builds the client from configuration. An empty base URL
// targets the public SendGrid API.
func NewSendgridClient(cfg config.SendgridConfig, opts ...Option) (*SendgridClient, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	request := sendgrid.GetRequest(key, sendEndpoint, strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	request.Method = rest.Post

	client := &SendgridClient{
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
		request: request,
		from:    mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *SendgridClient) build(msg Message) (*mail.SGMailV3, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email body is required")
	}

	m := mail.NewV3Mail()
	m.SetFrom(c.from)
	m.Subject = msg.Subject
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)
	// text/plain has to precede text/html
	if msg.TextBody != "" {
		m.AddContent(mail.NewContent("text/plain", msg.TextBody))
	}
	if msg.HTMLBody != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTMLBody))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	return m, nil
}

// Send posts the message. Transport failures and non 2xx answers are
// dependency errors so callers retry.
func (c *SendgridClient) Send(ctx context.Context, msg Message) (Result, error) {
	m, err := c.build(msg)
	if err != nil {
		return Result{}, err
	}
	request := c.request
	request.Body = mail.GetRequestBody(m)

	resp, err := c.client.SendWithContext(ctx, request)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute sendgrid request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := strings.TrimSpace(resp.Body)
		if len(body) > responseBodyLimit {
			body = body[:responseBodyLimit]
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, body), "sendgrid request failed")
	}
	return Result{MessageID: http.Header(resp.Headers).Get("X-Message-Id")}, nil
}
