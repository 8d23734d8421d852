package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRelation prefixes fingerprints of serialized relations. The
// version suffix changes whenever the document format does.
const DomainRelation = "relir/relation/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content-addressed identity for a serialized
// document (typically the output of serialization.DictWriter) under domain.
func Fingerprint(domain string, doc any) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}
