package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSigner signs outgoing alert payloads with HMAC-SHA256.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a signer for secret.
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSigner) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against payload in constant time.
func (s *HMACSigner) Verify(payload []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}
