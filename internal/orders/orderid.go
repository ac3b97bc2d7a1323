package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderIDPrefix = "DF"

// suffixAlphabet omits 0/O, 1/I/L so the id survives being read aloud on a
// kickoff call.
const suffixAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const suffixLength = 4

// NewOrderID returns a human-readable order id of the form DF-2026-0219-AB12.
// The random suffix keeps the id short enough for email subjects, so
// collisions are possible and callers must retry on a unique violation.
func NewOrderID(now time.Time) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("order id entropy: %w", err)
	}
	suffix := make([]byte, suffixLength)
	for i, b := range buf {
		suffix[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return fmt.Sprintf("%s-%d-%02d%02d-%s", orderIDPrefix, now.Year(), int(now.Month()), now.Day(), suffix), nil
}
