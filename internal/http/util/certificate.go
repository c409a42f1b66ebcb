package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCertificate = errors.New("invalid burn certificate")
	ErrMissingSecret      = errors.New("certificate secret is not configured")
)

// CertificateSigner mints and verifies compact HMAC tokens proving that a
// worry was burned at a given instant. Certificates are stateless and have
// no expiry: they remain verifiable after the record itself is purged.
type CertificateSigner struct {
	secret []byte
}

// NewCertificateSigner returns a signer bound to the given secret.
func NewCertificateSigner(secret []byte) *CertificateSigner {
	return &CertificateSigner{secret: secret}
}

// Issue mints a certificate for the burn of worryID at burnedAt.
func (s *CertificateSigner) Issue(worryID string, burnedAt time.Time) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	payload := make([]byte, 16) // 8 bytes burn instant (ms) + 8 random bytes
	binary.BigEndian.PutUint64(payload[:8], uint64(burnedAt.UnixMilli()))
	if _, err := rand.Read(payload[8:]); err != nil {
		return "", err
	}

	payloadEnc := base64.RawURLEncoding.EncodeToString(payload)
	signature := s.sign(worryID, payload)
	sigEnc := base64.RawURLEncoding.EncodeToString(signature[:16])
	return fmt.Sprintf("%s.%s", payloadEnc, sigEnc), nil
}

// Validate checks the certificate against worryID and returns the burn
// instant it attests to.
func (s *CertificateSigner) Validate(worryID, token string) (time.Time, error) {
	if len(s.secret) == 0 {
		return time.Time{}, ErrMissingSecret
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return time.Time{}, ErrInvalidCertificate
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(payload) != 16 {
		return time.Time{}, ErrInvalidCertificate
	}

	sigProvided, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(sigProvided) != 16 {
		return time.Time{}, ErrInvalidCertificate
	}

	expected := s.sign(worryID, payload)
	if !hmac.Equal(sigProvided, expected[:16]) {
		return time.Time{}, ErrInvalidCertificate
	}

	millis := int64(binary.BigEndian.Uint64(payload[:8]))
	return time.UnixMilli(millis), nil
}

func (s *CertificateSigner) sign(worryID string, payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(worryID))
	mac.Write([]byte("|"))
	mac.Write(payload)
	return mac.Sum(nil)
}
