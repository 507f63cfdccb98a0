// Package queue defines message payloads exchanged over the message broker
// together with the consumers and the credential RPC server bound to them.
package queue

import "time"

// AuthEventsQueue is the durable queue authentication events are published to.
const AuthEventsQueue = "auth.events"

// Authentication lifecycle event types.
const (
	EventRegistered = "auth.registered"
	EventLogin      = "auth.login"
	EventLogout     = "auth.logout"
	EventRefresh    = "auth.refresh"
)

// AuthEvent is published after a successful register, login, logout or
// refresh. It never carries tokens or password material.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	Mail       string    `json:"mail"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}
