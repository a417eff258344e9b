package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/madgic/madgic-chat/internal/domain/chat"
)

const (
	agentStreamPath = "/api/v1/mcp"
	agentSyncPath   = "/api/v1/mcp/sync"
	queryPath       = "/api/v1/query"
	queryStreamPath = "/api/v1/query/stream"
	healthPath      = "/health"
)

// ErrNoStream is returned when a streaming response has no readable body.
var ErrNoStream = errors.New("failed to get response reader")

// StatusError is a non-2xx backend response. Text is the reason phrase the
// backend sent.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d %s", e.Code, e.Text)
}

func newStatusError(resp *resty.Response) *StatusError {
	code := resp.StatusCode()
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return &StatusError{Code: code, Text: text}
}

// Config configures the backend client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// StreamTimeout bounds a whole streaming response. Zero means no limit.
	StreamTimeout time.Duration
}

// Client implements chat.Backend over HTTP.
type Client struct {
	http   *resty.Client
	stream *resty.Client
}

// NewClient creates a Resty-backed client.
func NewClient(cfg Config) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.RequestTimeout),
		stream: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "text/event-stream").
			SetTimeout(cfg.StreamTimeout),
	}
}

// StreamAgentTask calls the agent endpoint and returns the SSE body.
func (c *Client) StreamAgentTask(ctx context.Context, req chat.TaskRequest) (io.ReadCloser, error) {
	return c.openStream(ctx, agentStreamPath, req)
}

// StreamQuery calls the streaming chatbot endpoint and returns the SSE body.
func (c *Client) StreamQuery(ctx context.Context, req chat.QueryRequest) (io.ReadCloser, error) {
	return c.openStream(ctx, queryStreamPath, req)
}

func (c *Client) openStream(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(path)
	if err != nil {
		return nil, err
	}

	raw := resp.RawBody()
	if resp.IsError() {
		if raw != nil {
			raw.Close()
		}
		return nil, newStatusError(resp)
	}
	if raw == nil {
		return nil, ErrNoStream
	}
	return raw, nil
}

type agentSyncResponse struct {
	Status string `json:"status"`
	Result *struct {
		Results     *orderedmap.OrderedMap[string, json.RawMessage] `json:"results"`
		FinalResult *string                                         `json:"final_result"`
	} `json:"result"`
	Error *string `json:"error"`
}

// RunAgentTask calls the non-streaming agent endpoint.
func (c *Client) RunAgentTask(ctx context.Context, req chat.TaskRequest) (*chat.AgentTaskResult, error) {
	var out agentSyncResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(agentSyncPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, newStatusError(resp)
	}

	res := &chat.AgentTaskResult{Status: out.Status}
	if out.Error != nil {
		res.Error = *out.Error
	}
	if out.Result != nil {
		res.FinalResult = out.Result.FinalResult
		if out.Result.Results != nil {
			for pair := out.Result.Results.Oldest(); pair != nil; pair = pair.Next() {
				res.Results = append(res.Results, chat.NamedResult{Name: pair.Key, Value: pair.Value})
			}
		}
	}
	return res, nil
}

// Query calls the non-streaming chatbot endpoint.
func (c *Client) Query(ctx context.Context, req chat.QueryRequest) (*chat.QueryResult, error) {
	var out chat.QueryResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(queryPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, newStatusError(resp)
	}
	return &out, nil
}

// Health reports the backend's own health status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(healthPath)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", newStatusError(resp)
	}
	return out.Status, nil
}

var _ chat.Backend = (*Client)(nil)
