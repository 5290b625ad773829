package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix allows the
// algorithm to change without colliding with older digests.
const (
	DomainResults = "simkernel/results/v1"
	DomainPlan    = "simkernel/plan/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte keeps
// the domain and data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the hex SHA-256 of v's canonical JSON under domain.
func Digest(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ResultsDigest identifies a simulation outcome. Two runs of the same plan
// with the same model produce the same digest.
func ResultsDigest(results Object) (string, error) {
	return Digest(DomainResults, results)
}

// PlanDigest identifies a plan's content independent of its file format.
func PlanDigest(plan Object) (string, error) {
	return Digest(DomainPlan, plan)
}

// MustDigest is like Digest but panics on error. Use only in tests or when
// inputs are known to be finite.
func MustDigest(domain string, v Value) string {
	d, err := Digest(domain, v)
	if err != nil {
		panic(err)
	}
	return d
}
