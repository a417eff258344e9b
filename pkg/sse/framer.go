package sse

import "strings"

// Framer feeds raw stream chunks to Parse.
//
// With buffering enabled, text after the last blank line of a chunk is retained and
// prepended to the next chunk, so frames split across chunk boundaries survive.
// Without buffering each chunk is parsed on its own and a split frame is lost.
type Framer struct {
	buffered bool
	pending  strings.Builder
}

// NewFramer creates a framer. See Framer for the buffering semantics.
func NewFramer(buffered bool) *Framer {
	return &Framer{buffered: buffered}
}

// Feed parses one chunk and returns the frames it completes.
func (f *Framer) Feed(chunk string) []Event {
	if !f.buffered {
		return Parse(chunk)
	}

	f.pending.WriteString(chunk)
	text := f.pending.String()

	cut := lastBlankLineEnd(text)
	if cut == 0 {
		return nil
	}

	f.pending.Reset()
	f.pending.WriteString(text[cut:])
	return Parse(text[:cut])
}

// Pending returns the buffered text that does not yet end with a blank line.
func (f *Framer) Pending() string {
	return f.pending.String()
}

// lastBlankLineEnd returns the offset just past the last complete blank line in text,
// or 0 when there is none.
func lastBlankLineEnd(text string) int {
	cut := 0
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' {
			continue
		}
		line := strings.TrimSuffix(text[start:i], "\r")
		if line == "" {
			cut = i + 1
		}
		start = i + 1
	}
	return cut
}
