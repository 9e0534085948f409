package reservation

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// Booking codes look like BK20250602K7QM: a fixed prefix, the local booking
// date, and a short random suffix. The suffix alphabet drops the characters
// customers misread over the phone (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const codeSuffixLen = 4

func newBookingCode(date time.Time) (string, error) {
	buf := make([]byte, codeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("booking code entropy: %w", err)
	}
	suffix := make([]byte, codeSuffixLen)
	for i, b := range buf {
		suffix[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "BK" + date.Format("20060102") + string(suffix), nil
}

// generateCode produces a business-unique booking code, retrying on the
// rare suffix collision.
func (c *Coordinator) generateCode(ctx context.Context, businessID string, date time.Time) (string, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := newBookingCode(date)
		if err != nil {
			return "", err
		}
		taken, err := c.store.CodeExists(ctx, businessID, code)
		if err != nil {
			return "", fmt.Errorf("check booking code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("booking code collision persisted after %d attempts", maxAttempts)
}
