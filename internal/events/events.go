// Package events defines the conversation event payloads shared by the
// AMQP publisher and the notification worker.
package events

import "time"

const (
	TypeEscalated = "conversation.escalated"
	TypeResolved  = "conversation.resolved"
)

type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	OrganizationID string    `json:"organization_id"`
	ThreadID       string    `json:"thread_id"`
	At             time.Time `json:"at"`
}
