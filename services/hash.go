package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// configHash fingerprints the parts of a container spec that require a
// recreate when they change. The hash is stamped into a label so a later
// Up can tell a stale container from a current one without diffing the
// live configuration field by field.
func configHash(spec ContainerSpec) string {
	spec.ConfigHash = ""
	b, _ := json.Marshal(spec)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
