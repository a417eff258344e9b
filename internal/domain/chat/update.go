package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload is returned when a data field is not a JSON object.
	ErrMalformedPayload = errors.New("malformed event payload")
	// ErrUnrecognizedPayload is returned when a payload matches no known shape.
	ErrUnrecognizedPayload = errors.New("unrecognized event payload")
)

// Update is the closed set of backend progress records.
type Update interface {
	signal() Signal
}

// StepUpdate reports one finished agent step.
type StepUpdate struct {
	Step    string
	Result  json.RawMessage
	IsFinal bool
}

// FinalUpdate marks the end of a turn. FinalResult is set by the agent backend,
// FullResponse by the chatbot backend. Trailing is the step the record also carried.
type FinalUpdate struct {
	FinalResult  *string
	FullResponse string
	Trailing     *StepUpdate
}

// ErrorUpdate is a backend-reported failure.
type ErrorUpdate struct {
	Message string
}

// StreamingChunk is one chatbot token chunk. FullResponse, when non-empty, is the
// backend's cumulative text and wins over local concatenation.
type StreamingChunk struct {
	Chunk        string
	FullResponse string
}

func (StepUpdate) signal() Signal     { return SignalStep }
func (FinalUpdate) signal() Signal    { return SignalFinal }
func (ErrorUpdate) signal() Signal    { return SignalBackendError }
func (StreamingChunk) signal() Signal { return SignalChunk }

// wirePayload is the union of every field the backend sends in a data field.
type wirePayload struct {
	Status       string          `json:"status"`
	Step         string          `json:"step"`
	Result       json.RawMessage `json:"result"`
	IsFinal      bool            `json:"is_final"`
	FinalResult  *string         `json:"final_result"`
	FullResponse *string         `json:"full_response"`
	Chunk        string          `json:"chunk"`
	Error        *string         `json:"error"`
}

// DecodeUpdate validates a data field and maps it to exactly one Update variant.
//
// Precedence: a non-empty error, then a streaming chunk, then a final record, then a
// step record. Anything else yields ErrUnrecognizedPayload.
func DecodeUpdate(data string) (Update, error) {
	var p wirePayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if p.Error != nil && *p.Error != "" {
		return ErrorUpdate{Message: *p.Error}, nil
	}

	if p.Status == "streaming" && p.Chunk != "" {
		return StreamingChunk{Chunk: p.Chunk, FullResponse: deref(p.FullResponse)}, nil
	}

	step := p.stepUpdate()

	if p.IsFinal {
		return FinalUpdate{
			FinalResult:  p.FinalResult,
			FullResponse: deref(p.FullResponse),
			Trailing:     step,
		}, nil
	}

	if step != nil {
		return *step, nil
	}

	return nil, ErrUnrecognizedPayload
}

// DecodeErrorEvent reads the payload of an `event: error` frame.
func DecodeErrorEvent(data string) (ErrorUpdate, error) {
	var p wirePayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return ErrorUpdate{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Error == nil {
		return ErrorUpdate{}, ErrUnrecognizedPayload
	}
	return ErrorUpdate{Message: *p.Error}, nil
}

func (p wirePayload) stepUpdate() *StepUpdate {
	if p.Step == "" || !truthy(p.Result) {
		return nil
	}
	return &StepUpdate{Step: p.Step, Result: p.Result, IsFinal: p.IsFinal}
}

// truthy reports whether a raw JSON value is present and not an empty/zero scalar.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch string(raw) {
	case "null", "false", "0", `""`:
		return false
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
