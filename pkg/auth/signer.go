// Package auth computes request signatures.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer signs a serialized query string.
type Signer interface {
	Sign(message string) string
}

// Sign returns the lowercase hex HMAC-SHA256 of message keyed by secretKey.
func Sign(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// HMACSigner is a Signer bound to one secret key.
type HMACSigner struct {
	secret string
}

// NewHMACSigner returns a signer for secretKey.
func NewHMACSigner(secretKey string) HMACSigner {
	return HMACSigner{secret: secretKey}
}

// Sign implements Signer.
func (s HMACSigner) Sign(message string) string {
	return Sign(s.secret, message)
}

// Verify reports whether signature matches message, in constant time.
func (s HMACSigner) Verify(message, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(message))
	return hmac.Equal(h.Sum(nil), want)
}
