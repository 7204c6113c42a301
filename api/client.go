package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-chat-client/credentials"
	clienterrors "github.com/jrsteele09/go-chat-client/internal/errors"
)

// Notifier is the error-surface hook. The core decides that a failure must
// surface; how it is rendered (toast, log line) belongs to the host.
type Notifier func(message string, code int)

// Client is the authenticated request pipeline: it attaches a valid
// credential to every call, unwraps the response envelope, classifies
// failures, and retries exactly once after a renewal when the server
// reports the credential as invalid.
type Client struct {
	httpClient      *http.Client
	streamClient    *http.Client
	baseURL         string
	creds           *credentials.Manager
	log             zerolog.Logger
	notify          Notifier
	systemCodeFloor int
	streamChunkSize int
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the transport used for non-streaming calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithNotifier installs the error-surface hook.
func WithNotifier(notify Notifier) ClientOption {
	return func(c *Client) {
		c.notify = notify
	}
}

// WithSystemCodeFloor sets the envelope code at which a business failure
// is classified as a system failure.
func WithSystemCodeFloor(floor int) ClientOption {
	return func(c *Client) {
		c.systemCodeFloor = floor
	}
}

// WithStreamChunkSize sets the read size of stream decode loops.
func WithStreamChunkSize(size int) ClientOption {
	return func(c *Client) {
		c.streamChunkSize = size
	}
}

// NewClient initializes a new Client with required dependencies.
func NewClient(baseURL string, creds *credentials.Manager, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}
	if creds == nil {
		return nil, errors.New("[NewClient] credential manager is required")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		// Streams outlive any sane request timeout; their lifetime is
		// bounded by the request context instead.
		streamClient:    &http.Client{},
		baseURL:         strings.TrimRight(baseURL, "/"),
		creds:           creds,
		log:             zerolog.Nop(),
		systemCodeFloor: defaultSystemCodeFloor,
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// Call issues req and decodes the envelope's data payload into T.
func Call[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	data, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, c.fail(&Error{Kind: KindTransport, Message: "malformed response payload", err: err})
	}
	return out, nil
}

// Do issues req and returns the envelope's raw data payload. A 401 triggers
// exactly one credential renewal followed by one replay of the original
// request; a second rejection surfaces as an authentication failure.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	const maxAttempts = 2 // the original request plus one replay after renewal

	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, req, c.httpClient)
		if err != nil {
			return nil, c.fail(&Error{Kind: KindTransport, Message: "request failed", err: err})
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			if req.SkipAuth || attempt >= maxAttempts {
				return nil, c.fail(&Error{Kind: KindAuth, Code: http.StatusUnauthorized, Message: "unauthenticated", err: clienterrors.ErrUnauthenticated})
			}
			if _, err := c.creds.Renew(ctx); err != nil {
				return nil, c.fail(&Error{Kind: KindAuth, Code: http.StatusUnauthorized, Message: "token renewal failed", err: err})
			}
			c.log.Debug().Str("path", req.Path).Msg("replaying request after token renewal")
			continue
		}

		return c.unwrap(resp)
	}
}

func (c *Client) send(ctx context.Context, req Request, httpClient *http.Client) (*http.Response, error) {
	return c.sendWith(ctx, req, httpClient, nil)
}

func (c *Client) sendWith(ctx context.Context, req Request, httpClient *http.Client, decorate func(*http.Request)) (*http.Response, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.send] marshal body")
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.send] build request")
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.SkipAuth {
		if token, ok := c.creds.GetValidToken(ctx); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if decorate != nil {
		decorate(httpReq)
	}

	return httpClient.Do(httpReq)
}

func (c *Client) unwrap(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, c.fail(&Error{Kind: KindTransport, Code: resp.StatusCode, Message: strings.TrimSpace(string(body))})
	}

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, c.fail(&Error{Kind: KindTransport, Code: resp.StatusCode, Message: "malformed response envelope", err: err})
	}
	if envelope.Code != 0 {
		return nil, c.fail(&Error{Kind: KindBusiness, Code: envelope.Code, Message: envelope.Message})
	}

	return envelope.Data, nil
}

// fail finishes classification, fires the error-surface hook, and logs
// unexpected failures.
func (c *Client) fail(apiErr *Error) error {
	apiErr.systemCodeFloor = c.systemCodeFloor
	if c.notify != nil {
		c.notify(apiErr.Message, apiErr.Code)
	}
	if apiErr.System() {
		c.log.Warn().Int("code", apiErr.Code).Str("kind", apiErr.Kind.String()).Msg(apiErr.Message)
	} else {
		c.log.Debug().Int("code", apiErr.Code).Msg(apiErr.Message)
	}
	return apiErr
}
