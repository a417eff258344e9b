package handlers

import (
	"github.com/madgic/madgic-chat/internal/domain/chat"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Session *SessionHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(service *chat.Service, dispatcher chat.Dispatcher) *Provider {
	return &Provider{
		Session: NewSessionHandler(service, dispatcher),
	}
}
