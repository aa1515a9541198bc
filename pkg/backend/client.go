package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/respgw/pkg/api"
)

// Client performs HTTP requests against the Chat Completions backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// ModelMapper optionally rewrites the model name before it is sent to
	// the backend. If nil, the model name is forwarded unchanged.
	ModelMapper func(string) string

	// ChannelCapacity sizes the Event channel returned by Stream — the
	// bounded buffer between the SSE reader goroutine and whatever drains
	// the channel. Defaults to 64 when zero.
	ChannelCapacity int

	// MaxLineSize caps the length of a single SSE line read from the
	// backend. Defaults to sse.DefaultMaxLine when zero.
	MaxLineSize int
}

// NewClient creates a Client for the given backend base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         baseURL,
		apiKey:          apiKey,
		ChannelCapacity: 64,
	}
}

// SetConnectTimeout bounds dialing and TLS handshake separately from the
// overall request timeout passed to NewClient, which otherwise also has to
// cover an entire streamed response. The transport it installs keeps up to
// 1024 idle connections per host for 60s. Zero leaves Go's default
// transport in place.
func (c *Client) SetConnectTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.httpClient.Transport = &http.Transport{
		DialContext:         (&net.Dialer{Timeout: d}).DialContext,
		MaxIdleConnsPerHost: 1024,
		IdleConnTimeout:     60 * time.Second,
	}
}

func (c *Client) buildRequest(ctx context.Context, req *Request, stream bool) (*http.Request, error) {
	reqCopy := *req
	reqCopy.Stream = stream
	if c.ModelMapper != nil {
		reqCopy.Model = c.ModelMapper(reqCopy.Model)
	}

	chatReq := ToChatRequest(&reqCopy)
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal backend request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create backend request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if cred, ok := CredentialFromContext(ctx); ok {
		httpReq.Header.Set("Authorization", "Bearer "+cred)
	} else if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return httpReq, nil
}

// Complete performs a non-streaming call against the Chat Completions
// endpoint. The gateway itself always talks to Client.Stream internally and
// buffers when the caller asked for stream:false; Complete remains available
// for callers (tests, the mock backend's own smoke checks) that want a
// single buffered round trip without going through the stream translator.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	return FromChatResponse(&chatResp), nil
}

// Stream performs a streaming call against the Chat Completions endpoint and
// returns a channel of Events. The channel is closed when the stream
// completes, errors, or ctx is cancelled. The timeout given to NewClient
// bounds the whole streamed round trip, including time spent waiting on
// deltas: it is applied as a deadline on ctx rather than as
// http.Client.Timeout, and when it passes the channel is closed.
func (c *Client) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	cancel := context.CancelFunc(func() {})
	if c.httpClient.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
	}

	httpReq, err := c.buildRequest(ctx, req, true)
	if err != nil {
		cancel()
		return nil, err
	}

	streamClient := &http.Client{Transport: c.httpClient.Transport}
	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer cancel()
		defer httpResp.Body.Close()
		return nil, MapHTTPError(httpResp)
	}

	capacity := c.ChannelCapacity
	if capacity <= 0 {
		capacity = 64
	}
	ch := make(chan Event, capacity)
	go func() {
		defer close(ch)
		defer cancel()
		defer httpResp.Body.Close()
		relaySSEStream(ctx, httpResp.Body, ch, c.MaxLineSize)
	}()

	return ch, nil
}

// ListModels queries GET /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create backend request: %s", err.Error()))
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	models := make([]ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		models = append(models, ModelInfo{ID: m.ID, Object: m.Object, OwnedBy: m.OwnedBy, SupportedFeatures: m.SupportedFeatures})
	}
	return models, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
