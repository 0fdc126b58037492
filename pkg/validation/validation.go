// Package validation provides input validation for scenarios and for
// commands arriving on the snapshot stream.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Message size and content limits
const (
	MaxMessageSize    = 4 * 1024
	MaxNameLen        = 32
	MaxCommandsPerSec = 20
	CommandBurst      = 10
)

// Body names are used as parent references in scenario files, so keep them
// to a plain identifier-like set.
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.]+$`)

// MessageValidator checks raw inbound stream messages
type MessageValidator struct {
	rateLimiter *RateLimiter
}

// NewMessageValidator creates a new message validator with per-client rate limiting
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{
		rateLimiter: NewRateLimiter(MaxCommandsPerSec, CommandBurst),
	}
}

// Close releases resources used by the message validator
func (v *MessageValidator) Close() {
	if v.rateLimiter != nil {
		v.rateLimiter.Close()
	}
}

// ValidateMessage validates a raw message against size, format and rate constraints
func (v *MessageValidator) ValidateMessage(data []byte, clientID string) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(data), MaxMessageSize)
	}

	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON format")
	}

	if !v.rateLimiter.Allow(clientID) {
		return fmt.Errorf("rate limit exceeded: max %d commands per second", MaxCommandsPerSec)
	}

	return nil
}

// Forget drops the rate limiting state of a disconnected client.
func (v *MessageValidator) Forget(clientID string) {
	v.rateLimiter.Remove(clientID)
}

// ValidateName validates and trims a planet or entity name
func ValidateName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}

	if len(name) > MaxNameLen {
		return "", fmt.Errorf("name too long: %d characters (max %d)", len(name), MaxNameLen)
	}

	if !utf8.ValidString(name) {
		return "", fmt.Errorf("name contains invalid UTF-8 characters")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("name cannot be only whitespace")
	}

	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("name contains control characters")
		}
	}

	if !validNameChars.MatchString(trimmed) {
		return "", fmt.Errorf("name contains invalid characters (only alphanumeric, spaces, hyphens, underscores and dots allowed)")
	}

	return trimmed, nil
}

// ValidateIndex checks a list index received from a client
func ValidateIndex(index int) error {
	if index < 0 {
		return fmt.Errorf("invalid index: %d (must not be negative)", index)
	}
	return nil
}

// ValidateFinite rejects NaN and infinite coordinates
func ValidateFinite(what string, values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", what, v)
		}
	}
	return nil
}
