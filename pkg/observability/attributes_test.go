package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

type upperRedactor struct{}

func (upperRedactor) SanitizePrompt(input string) string { return strings.ToUpper(input) }

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestWithTurnAttrs(t *testing.T) {
	got := attrMap(WithTurnAttrs("s-1", "", "agent", "stream", "hello", upperRedactor{}))
	assert.Equal(t, map[string]string{
		AttrSessionID:  "s-1",
		AttrMode:       "agent",
		AttrStreamMode: "stream",
		AttrPrompt:     "HELLO",
	}, got)

	got = attrMap(WithTurnAttrs("s-1", "t-1", "chatbot", "normal", "hello", nil))
	assert.Equal(t, "t-1", got[AttrThreadID])
	assert.NotContains(t, got, AttrPrompt)
}

func TestWithModelAttrs(t *testing.T) {
	assert.Nil(t, WithModelAttrs(""))
	assert.Equal(t, map[string]string{AttrModel: "gemini"}, attrMap(WithModelAttrs("gemini")))
}
