package ir

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Domain contexts for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSegment      = "pksplit/segment/v1"
	DomainPartitionKey = "pksplit/partition-key/v1"
)

// HashWithDomain computes a BLAKE3 hash in derive-key mode with the domain
// as context string, so identical bytes hash differently per domain.
// Returns 64 hex characters.
func HashWithDomain(domain string, data []byte) string {
	h := blake3.NewDeriveKey(domain)
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PartitionKeyID computes a stable identity for a full partition key.
func PartitionKeyID(pk PartitionKey) (string, error) {
	components := make([]any, len(pk))
	for i, c := range pk {
		components[i] = hex.EncodeToString(c)
	}
	canonical, err := MarshalCanonical(components)
	if err != nil {
		return "", fmt.Errorf("PartitionKeyID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainPartitionKey, canonical), nil
}
