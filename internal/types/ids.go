// internal/types/ids.go
package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type SessionID string

// ForkSeparator joins a session id and a backup suffix in fork file names.
// Session ids never contain it.
const ForkSeparator = "_"

var ErrInvalidSessionID = errors.New("invalid session id")

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// ParseSessionID accepts ids made of ASCII letters, digits and '-' only, so a
// valid id can never be mistaken for a fork file stem or escape its namespace.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSessionID)
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, s)
		}
	}
	return SessionID(s), nil
}

func (id SessionID) String() string {
	return string(id)
}
