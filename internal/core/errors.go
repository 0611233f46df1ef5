// Package core defines the fundamental types and errors for FamilyConnect.
package core

import "errors"

// Core errors that can occur across the system
var (
	// User / collaborator errors - propagated to the caller, never retried
	ErrUserNotFound   = errors.New("user not found")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrRecordNotFound = errors.New("record not found")

	// Reasoning backend errors - absorbed by the next pipeline stage
	ErrBackendUnavailable = errors.New("reasoning backend unavailable")

	// Supervisor errors - surfaced to the caller of send/waitUntilReady
	ErrAgentNotRunning    = errors.New("agent is not running")
	ErrStartupTimeout     = errors.New("timeout waiting for agents to be ready")
	ErrAgentCommunication = errors.New("agent communication failed")

	// Real-time channel errors - answered with an error event to the origin
	ErrMalformedEvent = errors.New("malformed event payload")

	// Storage errors
	ErrDuplicateRecord = errors.New("duplicate record")
	ErrMigrationFailed = errors.New("migration failed")
)
