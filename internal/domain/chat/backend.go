package chat

import (
	"context"
	"encoding/json"
	"io"
)

// TaskRequest is the agent endpoint body.
type TaskRequest struct {
	Task     string `json:"task"`
	ThreadID string `json:"thread_id,omitempty"`
}

// QueryRequest is the chatbot endpoint body.
type QueryRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// QueryResult is the non-streaming chatbot response.
type QueryResult struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NamedResult is one entry of the agent's ordered step results.
type NamedResult struct {
	Name  string
	Value json.RawMessage
}

// AgentTaskResult is the non-streaming agent response.
type AgentTaskResult struct {
	Status      string
	Results     []NamedResult
	FinalResult *string
	Error       string
}

// Backend is the remote task-execution service.
//
// Stream methods return the raw SSE body; the caller closes it.
type Backend interface {
	StreamAgentTask(ctx context.Context, req TaskRequest) (io.ReadCloser, error)
	RunAgentTask(ctx context.Context, req TaskRequest) (*AgentTaskResult, error)
	StreamQuery(ctx context.Context, req QueryRequest) (io.ReadCloser, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
}
