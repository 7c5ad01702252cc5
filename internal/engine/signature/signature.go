package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
)

type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
)

// Sign computes the HMAC-SHA256 of payload keyed by secret, hex encoded.
func Sign(payload, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignWith is Sign with an explicit algorithm.
func SignWith(alg Algorithm, payload, secret []byte) (string, error) {
	constructor, err := hashFor(alg)
	if err != nil {
		return "", err
	}
	h := hmac.New(constructor, secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time. Any
// length mismatch or decode failure returns false; it never panics.
func Verify(payload []byte, sig string, secret []byte, alg Algorithm) bool {
	expected, err := SignWith(alg, payload, secret)
	if err != nil {
		return false
	}
	if len(sig) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1
}

func hashFor(alg Algorithm) (func() hash.Hash, error) {
	switch alg {
	case SHA256, "":
		return sha256.New, nil
	case SHA1:
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %s", alg)
	}
}
