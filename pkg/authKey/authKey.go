package authKey

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samborkent/uuidv7"
)

// Length is the number of characters in a key.
const Length = 6

var ErrMalformedKey = errors.New("malformed authorization key")

// Generate derives a key from the millisecond timestamp: its last six base-36 digits, upper-cased.
func Generate(now time.Time) string {
	encoded := strconv.FormatInt(now.UnixMilli(), 36)
	if len(encoded) > Length {
		encoded = encoded[len(encoded)-Length:]
	}
	return strings.ToUpper(encoded)
}

// Normalize trims whatever the operator pasted or typed and upper-cases it.
func Normalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func Validate(key string) error {
	if len(key) != Length {
		return ErrMalformedKey
	}
	for _, r := range key {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') {
			return ErrMalformedKey
		}
	}
	return nil
}

// NewKeyUUID identifies one issuance on the wire.
func NewKeyUUID() string {
	return uuidv7.New().String()
}
