// Package mcpserver exposes meeting search and indexing as Model Context
// Protocol tools so assistants can query transcripts directly.
package mcpserver

import "errors"

var (
	// ErrMissingResources is returned when no resource manager is provided.
	ErrMissingResources = errors.New("mcpserver: resource manager is required")

	// ErrMissingStore is returned when no transcript store is provided.
	ErrMissingStore = errors.New("mcpserver: transcript store is required")
)
