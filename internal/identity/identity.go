package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderIDs mints the two identifiers every order gets at creation:
// a reference id (random UUID, the authoritative key the gateway callbacks
// are matched on) and a pickup id (date-time plus short random suffix, for
// humans at the pickup counter). Both come from the crypto random source;
// an exhausted source is an error, never a weak identifier.
func GenerateOrderIDs() (referenceID, pickupID string, err error) {
	return generateAt(time.Now().UTC(), rand.Reader)
}

func generateAt(now time.Time, r io.Reader) (string, string, error) {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("generate reference id: %w", err)
	}

	suffix := make([]byte, 4)
	if _, err := io.ReadFull(r, suffix); err != nil {
		return "", "", fmt.Errorf("generate pickup suffix: %w", err)
	}

	pickup := fmt.Sprintf("%s-%s-%s",
		now.Format("20060102"),
		now.Format("150405"),
		hex.EncodeToString(suffix),
	)

	return id.String(), pickup, nil
}
