package logging

import (
	"github.com/google/uuid"
)

// RequestIDHeader is the HTTP header carrying a request ID.
const RequestIDHeader = "X-Request-ID"

// GenerateRequestID returns a random version 4 UUID string.
func GenerateRequestID() string {
	return uuid.NewString()
}

// ValidRequestID reports whether id can be reused as a request ID. IDs
// supplied by clients are accepted when they parse as a UUID.
func ValidRequestID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
