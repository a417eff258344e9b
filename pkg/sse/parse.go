// Package sse implements the Server-Sent-Events framing used between the chat client
// and the task backend: a line parser, a chunk framer and a flushing frame writer.
package sse

import "strings"

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

// Event is a single decoded frame.
type Event struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Parse decodes every complete frame in text, in order.
//
// A frame is terminated by a blank line and is emitted only when both an event name
// and a payload were set. Partial frames are dropped at the blank line. A line break
// at the very end of text also ends the pending frame, as a blank line would. A frame
// whose last line is not followed by a line break is lost; use a buffered Framer to
// carry it over to the next chunk.
func Parse(text string) []Event {
	var (
		events  []Event
		current Event
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.HasPrefix(line, eventPrefix):
			current.Event = strings.TrimSpace(line[len(eventPrefix):])
		case strings.HasPrefix(line, dataPrefix):
			current.Data = strings.TrimSpace(line[len(dataPrefix):])
		case line == "":
			if current.Event != "" && current.Data != "" {
				events = append(events, current)
			}
			current = Event{}
		}
	}

	return events
}
