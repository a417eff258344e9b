package terminal

import (
	"strconv"
	"strings"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

var agentSuggestions = []string{
	"Plan a trip to Italy",
	"Help me brainstorm ideas for my project",
	"Write a blog post about AI trends",
	"Create a workout plan for beginners",
}

var chatbotSuggestions = []string{
	"Tell me about the latest advancements in AI.",
	"What are some ethical considerations in large language models?",
	"Explain the concept of quantum computing in simple terms.",
	"Summarize the history of the internet.",
	"How does blockchain technology work?",
	"What are the potential impacts of climate change?",
}

// Suggestions returns the starter prompts shown on an empty chat.
func Suggestions(mode transcript.Mode) []string {
	if mode == transcript.ModeChatbot {
		return chatbotSuggestions
	}
	return agentSuggestions
}

// ResolveSuggestion maps a 1-based suggestion number to its prompt.
func ResolveSuggestion(mode transcript.Mode, input string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return "", false
	}
	list := Suggestions(mode)
	if n < 1 || n > len(list) {
		return "", false
	}
	return list[n-1], true
}
