// Package classifier talks to the remote voice-command endpoint that handles
// utterances the local rule table cannot resolve.
package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"vesta-voice/internal/domain/voice"
	"vesta-voice/internal/platform/errors"
	"vesta-voice/internal/platform/observability"
)

const (
	// CommandPath 相对于 API 基础地址
	CommandPath    = "/innovation/voice-command"
	defaultTimeout = 20 * time.Second
	maxBodyBytes   = 1 << 20
)

// TokenFunc returns the bearer token for the current page session, or "".
type TokenFunc func(ctx context.Context) string

// Logger is the subset of logging the client needs.
type Logger interface {
	DebugTag(tag, msg string, args ...interface{})
	WarnTag(tag, msg string, args ...interface{})
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     Logger
}

// Client posts transcripts to {BaseURL}/innovation/voice-command.
// It is safe for concurrent use; bind it to a session with WithTokens.
type Client struct {
	endpoint string
	http     *http.Client
	checker  *validator.Validate
	logger   Logger
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New(errors.KindConfig, "classifier.new", "api base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: base + CommandPath,
		http:     httpClient,
		checker:  validator.New(),
		logger:   opts.Logger,
	}, nil
}

// Endpoint returns the full URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// WithTokens returns a voice.Classifier that authenticates with tokens.
func (c *Client) WithTokens(tokens TokenFunc) voice.Classifier {
	return &bound{client: c, tokens: tokens}
}

type bound struct {
	client *Client
	tokens TokenFunc
}

func (b *bound) Classify(ctx context.Context, req voice.ClassifyRequest) (*voice.Result, error) {
	token := ""
	if b.tokens != nil {
		token = b.tokens(ctx)
	}
	return b.client.Classify(ctx, req, token)
}

// Classify sends one transcript. An empty token sends the request unauthenticated.
func (c *Client) Classify(ctx context.Context, req voice.ClassifyRequest, token string) (result *voice.Result, err error) {
	ctx, end := observability.StartSpan(ctx, "classifier", "classify")
	defer func() { end(err) }()

	body, err := sonic.Marshal(newRequest(req))
	if err != nil {
		return nil, errors.Wrap(errors.KindClassifier, "classifier.encode", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindClassifier, "classifier.request", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.record(ctx, "transport_error", start)
		return nil, errors.Wrap(errors.KindClassifier, "classifier.do", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(ctx, "read_error", start)
		return nil, errors.Wrap(errors.KindClassifier, "classifier.read", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record(ctx, "status_"+strconv.Itoa(resp.StatusCode), start)
		if c.logger != nil {
			c.logger.WarnTag("分类", "远程分类返回 %d: %s", resp.StatusCode, truncate(string(payload), 200))
		}
		return nil, errors.New(errors.KindClassifier, "classifier.status", fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	result, err = c.decode(payload)
	if err != nil {
		c.record(ctx, "decode_error", start)
		return nil, err
	}
	c.record(ctx, "ok", start)
	if c.logger != nil {
		c.logger.DebugTag("分类", "远程分类完成 reply=%t action=%t", result.Reply != "", result.Action != nil)
	}
	return result, nil
}

func (c *Client) decode(payload []byte) (*voice.Result, error) {
	var resp response
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := sonic.Unmarshal(payload, &resp); err != nil {
			return nil, errors.Wrap(errors.KindClassifier, "classifier.decode", "decode response", err)
		}
	}
	if err := c.checker.Struct(&resp); err != nil {
		return nil, errors.Wrap(errors.KindClassifier, "classifier.validate", "invalid response", err)
	}
	return resp.toResult()
}

func (c *Client) record(ctx context.Context, outcome string, start time.Time) {
	observability.RecordMetric(ctx, "classifier.requests", 1, map[string]string{"outcome": outcome})
	observability.RecordMetric(ctx, "classifier.latency_ms", float64(time.Since(start).Milliseconds()), nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
