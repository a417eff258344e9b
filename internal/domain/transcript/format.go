package transcript

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ResultPrefix is the boilerplate the agent backend puts in front of step results.
const ResultPrefix = "Agent execution result: "

// FormatStepResult extracts presentable text from a step result.
//
// Strings starting with ResultPrefix lose the prefix and surrounding whitespace; other
// strings pass through. Any other value is rendered as indented JSON.
func FormatStepResult(v any) string {
	s, ok := v.(string)
	if !ok {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(out)
	}

	if strings.HasPrefix(s, ResultPrefix) {
		return strings.TrimSpace(s[len(ResultPrefix):])
	}
	return s
}

// FormatRawResult applies FormatStepResult to an undecoded JSON value.
func FormatRawResult(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return FormatStepResult(v)
}

// AppendThinking adds one step to the legacy markdown thinking text.
func AppendThinking(thinking, title, content string) string {
	return fmt.Sprintf("%s\n**%s**:\n```markdown\n%s\n```", thinking, title, content)
}

var thinkingBlock = regexp.MustCompile("(?s)\\*\\*(.+?)\\*\\*:\\n```markdown\\n(.*?)\\n```")

// ParseThinking recovers steps from legacy thinking text: the bolded token is the
// title and the fenced block is the content.
func ParseThinking(thinking string) []Step {
	matches := thinkingBlock.FindAllStringSubmatch(thinking, -1)
	if len(matches) == 0 {
		return nil
	}
	steps := make([]Step, 0, len(matches))
	for _, m := range matches {
		steps = append(steps, Step{Title: m[1], Content: m[2]})
	}
	return steps
}
