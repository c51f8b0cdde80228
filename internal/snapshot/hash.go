package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainState is the domain prefix for state content hashes.
// The version suffix leaves room for a future algorithm migration.
const DomainState = "rewind/state/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of v. Equal values always hash equally,
// regardless of key insertion order or Unicode composition of strings.
func Hash(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when v is known to be present.
func MustHash(v Value) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}
