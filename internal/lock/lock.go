// Package lock implements the slot lock that serializes concurrent booking
// creation for one (resource item, time window). The lock is advisory: it
// exists to reject contenders quickly, not to guarantee exclusivity. The
// storage layer's overlap check stays authoritative even when the lock
// service is down or a holder crashes past its TTL.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"reserva/internal/models"

	"github.com/google/uuid"
)

// ErrMalformedToken is returned by Release for tokens not issued by Acquire.
var ErrMalformedToken = errors.New("malformed lock token")

const keyPrefix = "slot_lock:"

// SlotKey canonicalizes a (resource item, window) pair into a lock key.
// Identical windows hash to the same key regardless of the caller's time
// zone; different windows never contend.
func SlotKey(resourceItemID string, period models.Period) string {
	raw := fmt.Sprintf("%s|%s|%s",
		resourceItemID,
		period.Start.UTC().Format(time.RFC3339Nano),
		period.End.UTC().Format(time.RFC3339Nano),
	)
	sum := sha256.Sum256([]byte(raw))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// newToken issues a token that embeds the key, so Release stays stateless
// and works across processes.
func newToken(key string) string {
	return key + "/" + uuid.NewString()
}

func splitToken(token string) (key string, err error) {
	idx := strings.LastIndex(token, "/")
	if idx <= 0 || !strings.HasPrefix(token, keyPrefix) {
		return "", ErrMalformedToken
	}
	return token[:idx], nil
}
