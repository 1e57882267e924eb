package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for fingerprints. The version suffix allows the algorithm
// to change without old fingerprints colliding with new ones.
const (
	DomainResponse = "erpgate/response/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResponseFingerprint fingerprints canonical response bytes. It is stored
// next to each idempotency record and logged on conflicting replays so two
// outcomes can be compared without printing either payload.
func ResponseFingerprint(canonical []byte) string {
	return hashWithDomain(DomainResponse, canonical)
}
