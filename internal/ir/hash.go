package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainEvent  = "framesched/event/v1"
	DomainDigest = "framesched/digest/v1"
	DomainSource = "framesched/source/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the journal key of an event within a run. Writing the
// same event twice yields the same id, which makes journal writes
// idempotent.
func EventID(runID string, e Event) (string, error) {
	obj := Object{
		"run_id": String(runID),
		"event":  e.Object(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when the detail is known to be valid.
func MustEventID(runID string, e Event) string {
	id, err := EventID(runID, e)
	if err != nil {
		panic(err)
	}
	return id
}

// Digest hashes a whole trace. It excludes the run id so a replay of the
// same scenario reproduces the original digest.
func Digest(events []Event) (string, error) {
	arr := make(Array, len(events))
	for i, e := range events {
		arr[i] = e.Object()
	}
	canonical, err := MarshalCanonical(Object{
		"trace_version": String(TraceVersion),
		"events":        arr,
	})
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDigest, canonical), nil
}

// SourceHash identifies a scenario document.
func SourceHash(source []byte) string {
	return hashWithDomain(DomainSource, source)
}
