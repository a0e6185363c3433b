package analytics

import (
	"encoding/hex"
	"fmt"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"golang.org/x/crypto/blake2b"
)

// Hasher pseudonymises client addresses with keyed BLAKE2b digests. Raw
// addresses are never stored.
type Hasher struct {
	key []byte
}

// NewHasher accepts a key of at most 64 bytes.
func NewHasher(key []byte) (*Hasher, error) {
	const op = "analytics.NewHasher"

	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("%s: key longer than %d bytes", op, blake2b.Size)
	}

	return &Hasher{key: key}, nil
}

// Fingerprint identifies a device as the pair of its address and user agent.
func (h *Hasher) Fingerprint(ip, userAgent string) string {
	return h.sum([]byte(ip), []byte{0}, []byte(userAgent))
}

func (h *Hasher) IPHash(ip string) string {
	return h.sum([]byte(ip))
}

// Pseudonymise fills the digests of event and clears its raw address.
// Events that already carry digests are returned unchanged.
func (h *Hasher) Pseudonymise(event entity.VisitEvent) entity.VisitEvent {
	if event.IPHash != "" {
		event.IP = ""
		return event
	}

	event.IPHash = h.IPHash(event.IP)
	event.DeviceFingerprint = h.Fingerprint(event.IP, event.UserAgent)
	event.IP = ""

	return event
}

func (h *Hasher) sum(parts ...[]byte) string {
	d, err := blake2b.New256(h.key)
	if err != nil {
		// Unreachable: the key length is checked in NewHasher.
		panic(err)
	}

	for _, p := range parts {
		d.Write(p)
	}

	return hex.EncodeToString(d.Sum(nil))
}
