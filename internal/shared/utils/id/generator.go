package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewSessionID generates a time-ordered session identifier with a stable
// prefix for display.
func NewSessionID() string {
	return newIdentifier("session")
}

// NewCallID generates an identifier for a synthesized tool call.
func NewCallID() string {
	return newIdentifier("call")
}

// NewBatchID generates an identifier grouping the sessions of one batch run.
func NewBatchID() string {
	return newIdentifier("batch")
}

// ShortSessionID trims a session id to its prefix and the first block of the
// UUID, for file names and terminal output.
func ShortSessionID(sessionID string) string {
	prefix, body, ok := strings.Cut(sessionID, "-")
	if !ok {
		return sessionID
	}
	if head, _, found := strings.Cut(body, "-"); found {
		return prefix + "-" + head
	}
	return sessionID
}

func newIdentifier(prefix string) string {
	body, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", prefix, body.String())
}
