package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
const (
	DomainTable  = "pvl/table/v1"
	DomainScript = "pvl/script/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical JSON form of v under a domain prefix.
// Identical inputs always yield identical fingerprints.
func Fingerprint(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// ScriptFingerprint hashes a generated script body.
func ScriptFingerprint(lines []string) string {
	fp, err := Fingerprint(DomainScript, lines)
	if err != nil {
		// []string is always serializable
		panic(err)
	}
	return fp
}
