// Package telemetry scrubs user text before it reaches logs and traces.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Level controls how much user text survives redaction.
type Level string

const (
	// LevelNone replaces user text entirely.
	LevelNone Level = "none"
	// LevelHashed keeps the text but hashes recognised personal data.
	LevelHashed Level = "hashed"
	// LevelFull keeps the text as is.
	LevelFull Level = "full"
)

const redacted = "[REDACTED]"

// ParseLevel maps a config value to a Level. An empty value means LevelHashed.
func ParseLevel(raw string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(raw))); l {
	case "":
		return LevelHashed, nil
	case LevelNone, LevelHashed, LevelFull:
		return l, nil
	default:
		return "", fmt.Errorf("unknown redaction level %q (want none, hashed or full)", raw)
	}
}

type rule struct {
	label   string
	pattern *regexp.Regexp
	// hashed rules keep a salted digest of the match, others drop it.
	hashed bool
}

// Order matters: the more specific number formats run before phone numbers.
var rules = []rule{
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), false},
	{"CC", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`), false},
	{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), true},
	{"PHONE", regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`), true},
	{"IP", regexp.MustCompile(`\b(?:[A-Fa-f0-9]{1,4}:){7}[A-Fa-f0-9]{1,4}\b`), true},
	{"IP", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), true},
}

// Redactor scrubs prompts, answers and session ids.
type Redactor struct {
	level Level
	salt  string
}

// NewRedactor creates a redactor. salt makes digests installation specific.
func NewRedactor(level Level, salt string) *Redactor {
	return &Redactor{level: level, salt: salt}
}

// SanitizePrompt scrubs user-entered text.
func (r *Redactor) SanitizePrompt(input string) string {
	switch r.level {
	case LevelFull:
		return input
	case LevelNone:
		if input == "" {
			return ""
		}
		return redacted
	default:
		return r.scrub(input)
	}
}

// SanitizeResponse scrubs backend-produced text.
func (r *Redactor) SanitizeResponse(response string) string {
	return r.SanitizePrompt(response)
}

// SanitizeSessionID hides a session id unless the level is LevelFull.
func (r *Redactor) SanitizeSessionID(id string) string {
	if id == "" || r.level == LevelFull {
		return id
	}
	if r.level == LevelNone {
		return redacted
	}
	return r.digest(id)
}

func (r *Redactor) scrub(input string) string {
	out := input
	for _, rl := range rules {
		rl := rl
		out = rl.pattern.ReplaceAllStringFunc(out, func(match string) string {
			if !rl.hashed {
				return "[" + rl.label + ":REDACTED]"
			}
			return "[" + rl.label + ":" + r.digest(match) + "]"
		})
	}
	return out
}

// digest returns the first 8 hex chars of a salted SHA-256.
func (r *Redactor) digest(data string) string {
	sum := sha256.Sum256([]byte(data + r.salt))
	return hex.EncodeToString(sum[:])[:8]
}
