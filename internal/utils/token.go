package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewOneTimeToken returns a random token for account confirmation and
// password reset links. It is URL-safe and carries no structure.
func NewOneTimeToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
