package manifest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sealer computes and checks digital seals.
//
// With a secret the seal is HMAC-SHA256 over the canonical manifest. Without
// one it degrades to a plain SHA-256, which catches accidental edits but not
// anyone willing to recompute it.
type Sealer struct {
	secret []byte
}

func NewSealer(secret []byte) Sealer {
	return Sealer{secret: append([]byte(nil), secret...)}
}

// Keyed reports whether seals are bound to a secret.
func (s Sealer) Keyed() bool { return len(s.secret) > 0 }

func (s Sealer) digest(m Manifest) (string, error) {
	b, err := Canonical(m)
	if err != nil {
		return "", fmt.Errorf("manifest: canonical: %w", err)
	}
	if !s.Keyed() {
		sum := sha256.Sum256(b)
		return hex.EncodeToString(sum[:]), nil
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Seal returns m with DigitalSeal set.
func (s Sealer) Seal(m Manifest) (Manifest, error) {
	seal, err := s.digest(m)
	if err != nil {
		return m, err
	}
	m.DigitalSeal = seal
	return m, nil
}

// Verify reports whether m's seal matches its content. Any mismatch,
// including a missing or malformed seal, is false.
func (s Sealer) Verify(m Manifest) bool {
	want, err := s.digest(m)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(m.DigitalSeal))
}
