package server

import (
	"github.com/aman-zulfiqar/pair-detector/internal/detector"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// StatusResponse reports the subscription state and pipeline counters
type StatusResponse struct {
	State  string         `json:"state"`
	Locked bool           `json:"locked"`
	Stats  detector.Stats `json:"stats"`
}

// TokensResponse wraps a newest-first slice of candidates
type TokensResponse struct {
	Items []*models.TokenCandidate `json:"items"`
}

// ToggleRequest sets one filter toggle
type ToggleRequest struct {
	Value *bool `json:"value"`
}

type ToggleResponse struct {
	Toggle string `json:"toggle"`
	Value  bool   `json:"value"`
}

// LockRequest sets the lock state
type LockRequest struct {
	Locked *bool `json:"locked"`
}

type LockResponse struct {
	Locked bool `json:"locked"`
}
