package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/zhouzirui/folio-assist/backend/internal/config"
)

const maxResponseBytes = 4 << 20

// ErrMalformedResponse covers any 2xx body the completion text cannot be read from.
var ErrMalformedResponse = errors.New("malformed completion response")

// StatusError reports a non-2xx answer from the completion service.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service returned %s", e.Status)
}

// Message is one chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat-completions request body.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type response struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint. It also
// satisfies eino's model.BaseChatModel so it can sit inside a compose chain.
type Client struct {
	endpoint   string
	model      string
	credential config.Secret
	http       *http.Client
}

var _ model.BaseChatModel = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a client from the widget configuration. A zero Timeout
// leaves the transport without an overall deadline.
func NewClient(cfg config.WidgetConfig, opts ...Option) *Client {
	c := &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		credential: cfg.Credential,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends text as the only user message and returns the raw
// completion content.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	return c.Chat(ctx, []Message{{Role: string(schema.User), Content: text}})
}

// Chat posts messages and returns choices[0].message.content.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("completion requires at least one message")
	}

	payload, err := json.Marshal(Request{Model: c.model, Messages: messages})
	if err != nil {
		return "", errors.Wrap(err, "marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "create completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential.Reveal())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send completion request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", errors.WithStack(&StatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	var decoded response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return "", errors.Wrapf(ErrMalformedResponse, "decode body: %v", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.Wrap(ErrMalformedResponse, "response missing choices")
	}
	content := decoded.Choices[0].Message.Content
	if content == nil {
		return "", errors.Wrap(ErrMalformedResponse, "response missing message content")
	}
	return *content, nil
}

// Generate implements model.BaseChatModel.
func (c *Client) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	messages := make([]Message, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		messages = append(messages, Message{Role: string(msg.Role), Content: msg.Content})
	}

	content, err := c.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream implements model.BaseChatModel with a single-chunk stream; the
// endpoint is always called without server-side streaming.
func (c *Client) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
