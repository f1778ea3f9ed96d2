package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new random identifier for debates and arguments.
func NewID() string {
	return uuid.New().String()
}

// requestNamespace scopes ids derived from client request tokens.
var requestNamespace = uuid.MustParse("6f1c2b9e-4d3a-5e8f-9a7b-1c2d3e4f5a6b")

// IDForRequest derives a stable id from a client request token, so a retried
// create maps onto the record the first attempt made.
func IDForRequest(token string) string {
	return uuid.NewSHA1(requestNamespace, []byte(token)).String()
}

// ShortID returns the first 8 characters of an id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// MatchesPrefix reports whether id starts with the given (case-insensitive) prefix.
func MatchesPrefix(id, prefix string) bool {
	return prefix != "" && strings.HasPrefix(strings.ToLower(id), strings.ToLower(prefix))
}
